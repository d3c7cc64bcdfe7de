// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package guardrail validates model-generated SQL before it reaches a
// tenant database. Validation is pure string analysis: only SELECT
// statements over an explicit table whitelist pass, and statements
// touching site-partitioned tables must carry the site filter. Anything
// the analysis cannot positively clear is rejected.
package guardrail

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule identifies which guardrail a statement violated.
type Rule string

const (
	// RuleForbiddenCommand fires on data-modifying or DDL keywords
	// anywhere in the statement.
	RuleForbiddenCommand Rule = "forbidden_command"
	// RuleNotSelect fires when the statement does not start with SELECT.
	RuleNotSelect Rule = "not_select"
	// RuleUnauthorizedTable fires when a FROM/JOIN references a table
	// outside the whitelist.
	RuleUnauthorizedTable Rule = "unauthorized_table"
	// RuleNoTables fires when no referenced table can be extracted.
	RuleNoTables Rule = "no_tables"
	// RuleMissingSiteFilter fires when a site-scoped table is queried
	// without filtering on the site column.
	RuleMissingSiteFilter Rule = "missing_site_filter"
)

// Violation is the typed error returned for a rejected statement.
type Violation struct {
	Rule  Rule
	Token string // the offending keyword or table, when applicable
}

func (v *Violation) Error() string {
	switch v.Rule {
	case RuleForbiddenCommand:
		return fmt.Sprintf("guardrail: forbidden command %q", v.Token)
	case RuleNotSelect:
		return "guardrail: only SELECT statements are allowed"
	case RuleUnauthorizedTable:
		return fmt.Sprintf("guardrail: table %q is not authorized", v.Token)
	case RuleNoTables:
		return "guardrail: no referenced tables could be identified"
	case RuleMissingSiteFilter:
		return fmt.Sprintf("guardrail: table %q requires a site filter", v.Token)
	}
	return "guardrail: statement rejected"
}

// Correction is a machine-readable fix hint fed back to the model as a
// tool observation so it can retry with a corrected statement.
type Correction struct {
	OriginalSQL     string
	Explanation     string
	Suggestion      string
	ConfidenceLevel string // "high", "medium", "low"
}

// Forbidden keywords are matched on word boundaries so that table and
// column names containing them as substrings (e.g. "altare" containing
// "alter") are not rejected.
var forbiddenRe = regexp.MustCompile(`\b(?:DROP|DELETE|INSERT|UPDATE|ALTER|TRUNCATE|GRANT|CREATE|REPLACE)\b`)

var tableRefRe = regexp.MustCompile(`(?:FROM|JOIN)\s+([a-zA-Z0-9_.]+)`)

// Validate checks a statement against the guardrails. allowedTables is
// the catalog's whitelist of bare table names (no schema prefix). A nil
// return means the statement may execute.
func Validate(sql string, allowedTables []string) error {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	if upper == "" {
		return &Violation{Rule: RuleNotSelect}
	}

	if m := forbiddenRe.FindString(upper); m != "" {
		return &Violation{Rule: RuleForbiddenCommand, Token: m}
	}

	if !strings.HasPrefix(upper, "SELECT") {
		return &Violation{Rule: RuleNotSelect}
	}

	tables := ExtractTables(sql)
	if len(tables) == 0 {
		return &Violation{Rule: RuleNoTables}
	}

	allowed := make(map[string]struct{}, len(allowedTables))
	for _, t := range allowedTables {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range tables {
		if _, ok := allowed[t]; !ok {
			return &Violation{Rule: RuleUnauthorizedTable, Token: t}
		}
	}
	return nil
}

// ExtractTables returns the lowercased bare table names referenced in
// FROM and JOIN clauses, schema prefixes stripped, in order of first
// appearance.
func ExtractTables(sql string) []string {
	matches := tableRefRe.FindAllStringSubmatch(strings.ToUpper(sql), -1)
	seen := make(map[string]struct{}, len(matches))
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// CheckSiteScope enforces the mandatory site filter. scopedTables maps
// table name to its scope column (e.g. "artistwork" -> "siteid"). The
// check is a conservative heuristic: every referenced scoped table must
// have its scope column mentioned in the statement. On failure it
// returns the violation together with a correction hint naming the
// exact filter to add.
func CheckSiteScope(sql string, scopedTables map[string]string, siteID int) (*Violation, *Correction) {
	upper := strings.ToUpper(sql)
	for _, table := range ExtractTables(sql) {
		column, scoped := scopedTables[table]
		if !scoped {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(column)) {
			continue
		}
		violation := &Violation{Rule: RuleMissingSiteFilter, Token: table}
		correction := &Correction{
			OriginalSQL:     sql,
			Explanation:     fmt.Sprintf("table %q is partitioned per site and every query against it must filter on %q", table, column),
			Suggestion:      fmt.Sprintf("add `%s = %d` to the WHERE clause and retry", column, siteID),
			ConfidenceLevel: "high",
		}
		return violation, correction
	}
	return nil, nil
}

// CorrectionFor builds the retry hint for a validation failure, in the
// same shape CheckSiteScope produces, so the agent can hand every
// guardrail rejection back to the model uniformly.
func CorrectionFor(sql string, v *Violation, allowedTables []string) *Correction {
	c := &Correction{OriginalSQL: sql, ConfidenceLevel: "high"}
	switch v.Rule {
	case RuleForbiddenCommand:
		c.Explanation = fmt.Sprintf("the statement contains the forbidden command %q; only read-only SELECT statements are executed", v.Token)
		c.Suggestion = "rewrite the request as a SELECT statement"
	case RuleNotSelect:
		c.Explanation = "only statements beginning with SELECT are executed"
		c.Suggestion = "rewrite the request as a SELECT statement"
	case RuleUnauthorizedTable:
		c.Explanation = fmt.Sprintf("table %q is not in the authorized set", v.Token)
		c.Suggestion = fmt.Sprintf("use only these tables: %s", strings.Join(allowedTables, ", "))
	case RuleNoTables:
		c.Explanation = "no FROM or JOIN table reference could be identified"
		c.Suggestion = "write a plain SELECT ... FROM <table> statement"
		c.ConfidenceLevel = "medium"
	case RuleMissingSiteFilter:
		c.Explanation = fmt.Sprintf("table %q requires a site filter", v.Token)
		c.Suggestion = "add the site filter to the WHERE clause"
	}
	return c
}
