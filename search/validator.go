package search

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gatewatch/core"
)

// MaxQueryLength is the maximum accepted length of a query string.
const MaxQueryLength = 2000

// injectionPatterns match query strings that look like injection attempts
// rather than telemetry searches. Compiled once at startup.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b`),
	regexp.MustCompile(`(?i)\bjavascript\s*:`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*`),
	regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|union)\b`),
	regexp.MustCompile(`(?i)'\s*or\s+'?1'?\s*=\s*'?1`),
}

// TimeRange bounds a query to records between Start and End.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validator checks query strings, limits and time ranges before any fetch
// is issued. All violations are collected into a single ValidationError.
type Validator struct {
	maxQueryLength int
}

// NewValidator creates a validator with the default query length limit.
func NewValidator() *Validator {
	return &Validator{maxQueryLength: MaxQueryLength}
}

// Validate checks a search request. maxLimit is the per-tool ceiling for
// the limit parameter; timeRange may be nil.
func (v *Validator) Validate(query string, limit, maxLimit int, timeRange *TimeRange) error {
	var violations []string

	if strings.TrimSpace(query) == "" {
		violations = append(violations, "query is required and cannot be empty")
	} else {
		if len(query) > v.maxQueryLength {
			violations = append(violations,
				fmt.Sprintf("query exceeds maximum length of %d characters", v.maxQueryLength))
		}
		for _, pattern := range injectionPatterns {
			if pattern.MatchString(query) {
				violations = append(violations, "query contains disallowed pattern")
				break
			}
		}
		if err := checkBalancedParens(query); err != nil {
			violations = append(violations, err.Error())
		}
	}

	if limit <= 0 {
		violations = append(violations, "limit must be a positive integer")
	} else if maxLimit > 0 && limit > maxLimit {
		violations = append(violations,
			fmt.Sprintf("limit %d exceeds maximum of %d", limit, maxLimit))
	}

	if timeRange != nil {
		if timeRange.Start.IsZero() || timeRange.End.IsZero() {
			violations = append(violations, "time range requires both start and end")
		} else if !timeRange.Start.Before(timeRange.End) {
			violations = append(violations, "time range start must be before end")
		}
	}

	if len(violations) > 0 {
		return &core.ValidationError{Violations: violations}
	}
	return nil
}

// checkBalancedParens rejects queries with unbalanced grouping, the one
// structural error the boolean grammar cannot recover from.
func checkBalancedParens(query string) error {
	depth := 0
	for _, r := range query {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("query has unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("query has unbalanced parentheses")
	}
	return nil
}
