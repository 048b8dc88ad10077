package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gatewatch/core"
)

func TestRewriteBooleanLiterals(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		entity core.EntityType
		want   string
	}{
		{
			name:   "flow blocked true",
			query:  "blocked:true AND protocol:tcp",
			entity: core.EntityFlows,
			want:   "blocked:1 AND protocol:tcp",
		},
		{
			name:   "flow allowed false with equals",
			query:  "allowed = false",
			entity: core.EntityFlows,
			want:   "allowed=0",
		},
		{
			name:   "case-insensitive literal",
			query:  "Blocked:TRUE",
			entity: core.EntityFlows,
			want:   "Blocked:1",
		},
		{
			name:   "alarm resolved",
			query:  "resolved:false AND severity:high",
			entity: core.EntityAlarms,
			want:   "resolved:0 AND severity:high",
		},
		{
			name:   "device online and monitored",
			query:  "online:true AND monitored:false",
			entity: core.EntityDevices,
			want:   "online:1 AND monitored:0",
		},
		{
			name:   "non-boolean field untouched",
			query:  "name:true",
			entity: core.EntityFlows,
			want:   "name:true",
		},
		{
			name:   "field of another entity untouched",
			query:  "online:true",
			entity: core.EntityFlows,
			want:   "online:true",
		},
		{
			name:   "entity without boolean fields passes through",
			query:  "category:ads",
			entity: core.EntityTargetLists,
			want:   "category:ads",
		},
		{
			name:   "bare literal without field untouched",
			query:  "true",
			entity: core.EntityFlows,
			want:   "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteBooleanLiterals(tt.query, tt.entity))
		})
	}
}
