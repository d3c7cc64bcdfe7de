// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package agent

import (
	"regexp"
	"strings"
)

// Internals the model may echo despite instructions: the site marker
// appended to user messages, SQL it composed, raw markup from the
// catalogue, and driver error text.
var (
	siteMarkerRe = regexp.MustCompile(`\s*\(siteid:\s*\d+\)`)
	sqlFenceRe   = regexp.MustCompile("(?is)```sql.*?```")
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	driverErrRe  = regexp.MustCompile(`(?im)^.*(pq:|Error \d{4}|SQLSTATE|sql: ).*$`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// Sanitize removes implementation internals from an answer before it
// reaches the visitor or the session history. Paragraph structure is
// preserved.
func Sanitize(text string) string {
	out := siteMarkerRe.ReplaceAllString(text, "")
	out = sqlFenceRe.ReplaceAllString(out, "")
	out = htmlTagRe.ReplaceAllString(out, "")
	out = driverErrRe.ReplaceAllString(out, "")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
