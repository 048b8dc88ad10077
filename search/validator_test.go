package search

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewatch/core"
)

func TestValidatorValidate(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		query      string
		limit      int
		maxLimit   int
		violations []string
	}{
		{
			name:     "valid query",
			query:    "protocol:tcp AND blocked:true",
			limit:    100,
			maxLimit: 1000,
		},
		{
			name:       "empty query",
			query:      "   ",
			limit:      100,
			maxLimit:   1000,
			violations: []string{"query is required and cannot be empty"},
		},
		{
			name:       "zero limit",
			query:      "protocol:tcp",
			limit:      0,
			maxLimit:   1000,
			violations: []string{"limit must be a positive integer"},
		},
		{
			name:       "negative limit",
			query:      "protocol:tcp",
			limit:      -5,
			maxLimit:   1000,
			violations: []string{"limit must be a positive integer"},
		},
		{
			name:       "limit over ceiling",
			query:      "protocol:tcp",
			limit:      1001,
			maxLimit:   1000,
			violations: []string{"limit 1001 exceeds maximum of 1000"},
		},
		{
			name:     "alarms ceiling is higher",
			query:    "severity:high",
			limit:    5000,
			maxLimit: 10000,
		},
		{
			name:       "sql comment injection",
			query:      "protocol:tcp -- drop",
			limit:      10,
			maxLimit:   1000,
			violations: []string{"query contains disallowed pattern"},
		},
		{
			name:       "script tag injection",
			query:      "<script>alert(1)</script>",
			limit:      10,
			maxLimit:   1000,
			violations: []string{"query contains disallowed pattern"},
		},
		{
			name:       "unbalanced parentheses",
			query:      "(protocol:tcp AND blocked:true",
			limit:      10,
			maxLimit:   1000,
			violations: []string{"query has unbalanced parentheses"},
		},
		{
			name:       "over-long query",
			query:      strings.Repeat("a", MaxQueryLength+1),
			limit:      10,
			maxLimit:   1000,
			violations: []string{"query exceeds maximum length of 2000 characters"},
		},
		{
			name:     "both violations collected",
			query:    "",
			limit:    0,
			maxLimit: 1000,
			violations: []string{
				"query is required and cannot be empty",
				"limit must be a positive integer",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.query, tt.limit, tt.maxLimit, nil)
			if len(tt.violations) == 0 {
				assert.NoError(t, err)
				return
			}
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.violations, ve.Violations)
		})
	}
}

func TestValidatorTimeRange(t *testing.T) {
	validator := NewValidator()
	now := time.Now()

	err := validator.Validate("protocol:tcp", 10, 1000, &TimeRange{
		Start: now,
		End:   now.Add(time.Hour),
	})
	assert.NoError(t, err)

	err = validator.Validate("protocol:tcp", 10, 1000, &TimeRange{
		Start: now.Add(time.Hour),
		End:   now,
	})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Violations, "time range start must be before end")

	err = validator.Validate("protocol:tcp", 10, 1000, &TimeRange{End: now})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Violations, "time range requires both start and end")
}
