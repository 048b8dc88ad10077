package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationParamsValidate(t *testing.T) {
	tests := []struct {
		name       string
		params     CorrelationParams
		violations []string
	}{
		{
			name: "valid single field",
			params: CorrelationParams{
				CorrelationFields: []string{"source_ip"},
				CorrelationType:   CorrelationAND,
			},
		},
		{
			name: "no fields",
			params: CorrelationParams{
				CorrelationType: CorrelationOR,
			},
			violations: []string{"at least one correlation field is required"},
		},
		{
			name: "too many fields",
			params: CorrelationParams{
				CorrelationFields: []string{"a", "b", "c", "d", "e", "f"},
				CorrelationType:   CorrelationAND,
			},
			violations: []string{"a maximum of 5 correlation fields is allowed, got 6"},
		},
		{
			name: "duplicate field",
			params: CorrelationParams{
				CorrelationFields: []string{"source_ip", "source_ip"},
				CorrelationType:   CorrelationAND,
			},
			violations: []string{"duplicate correlation field: source_ip"},
		},
		{
			name: "bad combinator",
			params: CorrelationParams{
				CorrelationFields: []string{"source_ip"},
				CorrelationType:   "XOR",
			},
			violations: []string{`invalid correlation type "XOR": must be AND or OR`},
		},
		{
			name: "non-positive window",
			params: CorrelationParams{
				CorrelationFields: []string{"source_ip"},
				CorrelationType:   CorrelationAND,
				TemporalWindow:    &TemporalWindow{WindowSize: 0, WindowUnit: WindowMinutes},
			},
			violations: []string{"temporal window size must be positive"},
		},
		{
			name:   "multiple violations collected",
			params: CorrelationParams{CorrelationType: "NONE"},
			violations: []string{
				"at least one correlation field is required",
				`invalid correlation type "NONE": must be AND or OR`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if len(tt.violations) == 0 {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.violations, ve.Violations)
		})
	}
}

func TestTemporalWindowDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, TemporalWindow{WindowSize: 30, WindowUnit: WindowSeconds}.Duration())
	assert.Equal(t, 5*time.Minute, TemporalWindow{WindowSize: 5, WindowUnit: WindowMinutes}.Duration())
	assert.Equal(t, 2*time.Hour, TemporalWindow{WindowSize: 2, WindowUnit: WindowHours}.Duration())
	// Unknown units fall back to seconds.
	assert.Equal(t, 7*time.Second, TemporalWindow{WindowSize: 7, WindowUnit: "days"}.Duration())
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Violations: []string{"first", "second"}}
	assert.Equal(t, "validation failed: first; second", err.Error())
	assert.True(t, IsValidationError(err))
}

func TestAPIErrorWrapping(t *testing.T) {
	inner := assert.AnError
	err := NewAPIError("Enhanced cross-reference search failed", inner)
	assert.Contains(t, err.Error(), "Enhanced cross-reference search failed")
	assert.ErrorIs(t, err, inner)
}
