package search

import (
	"regexp"

	"gatewatch/core"
)

// signalTokens maps query tokens that are unique to one entity type. The
// first signal found in the query wins; a query with no signal defaults to
// flows.
var signalTokens = map[string]core.EntityType{
	"download": core.EntityFlows,
	"upload":   core.EntityFlows,
	"bytes":    core.EntityFlows,

	"severity": core.EntityAlarms,
	"resolved": core.EntityAlarms,

	"action":       core.EntityRules,
	"target_value": core.EntityRules,

	"online": core.EntityDevices,

	"target_list": core.EntityTargetLists,
	"owner":       core.EntityTargetLists,
}

var wordPattern = regexp.MustCompile(`[A-Za-z_]+`)

// Router infers which telemetry entity a bare query string targets. The
// suggestion advisor reuses it without ever executing a fetch.
type Router struct{}

// NewRouter creates an entity router.
func NewRouter() *Router {
	return &Router{}
}

// Route scans the query for signal tokens and returns the matching entity
// type. Queries with no recognizable signal route to flows.
func (r *Router) Route(query string) core.EntityType {
	for _, token := range wordPattern.FindAllString(query, -1) {
		if et, ok := signalTokens[token]; ok {
			return et
		}
	}
	return core.EntityFlows
}
