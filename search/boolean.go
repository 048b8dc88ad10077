package search

import (
	"regexp"
	"strings"

	"gatewatch/core"
)

// booleanFields is the frozen per-entity table of boolean field names. The
// backend encodes booleans as 1/0, so human-readable true/false literals
// are rewritten before the query is sent.
var booleanFields = map[core.EntityType][]string{
	core.EntityFlows:   {"blocked", "allowed", "encrypted", "compressed"},
	core.EntityAlarms:  {"resolved", "acknowledged"},
	core.EntityRules:   {"active", "paused"},
	core.EntityDevices: {"online", "monitored"},
}

// booleanRewriters holds one precompiled rewriter per entity type, built
// once at startup instead of recompiling per call.
var booleanRewriters = buildBooleanRewriters()

func buildBooleanRewriters() map[core.EntityType]*regexp.Regexp {
	rewriters := make(map[core.EntityType]*regexp.Regexp, len(booleanFields))
	for et, fields := range booleanFields {
		pattern := `(?i)\b(` + strings.Join(fields, "|") + `)\s*([:=])\s*(true|false)\b`
		rewriters[et] = regexp.MustCompile(pattern)
	}
	return rewriters
}

// RewriteBooleanLiterals translates field:true / field=false occurrences
// into the backend's 1/0 encoding for fields the entity declares as
// boolean. Fields outside the table, and the unknown entity type, pass
// through untouched.
func RewriteBooleanLiterals(query string, et core.EntityType) string {
	rewriter, ok := booleanRewriters[et]
	if !ok {
		return query
	}
	return rewriter.ReplaceAllStringFunc(query, func(match string) string {
		parts := rewriter.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		value := "0"
		if strings.EqualFold(parts[3], "true") {
			value = "1"
		}
		return parts[1] + parts[2] + value
	})
}
