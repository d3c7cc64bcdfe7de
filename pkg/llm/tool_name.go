// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import "regexp"

var invalidToolNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeToolName maps a tool name onto the character set the
// provider APIs accept. Deterministic, so the same original name
// always sanitizes identically.
func SanitizeToolName(name string) string {
	return invalidToolNameChars.ReplaceAllString(name, "_")
}

// ReverseToolName maps a sanitized name back to the original using the
// per-request map built during conversion. Unknown names pass through.
func ReverseToolName(nameMap map[string]string, sanitized string) string {
	if original, ok := nameMap[sanitized]; ok {
		return original
	}
	return sanitized
}
