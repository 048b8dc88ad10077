package correlate

import (
	"go.uber.org/zap"

	"gatewatch/core"
	"gatewatch/search"
)

// multiFieldBase bounds the number of supported fields fed into the
// three-field combination generator, keeping suggestion payloads small.
const multiFieldBase = 8

// recommendedCombos is the curated list of high-signal field combinations.
// Each suggestion is filtered to combinations fully contained in the
// supported field intersection.
var recommendedCombos = [][]string{
	{"source_ip", "destination_ip"},
	{"device_ip", "device_vendor"},
	{"source_ip", "protocol"},
	{"device_ip", "protocol"},
	{"device_ip", "device_name"},
	{"severity", "source_ip"},
}

// EntityTypes names the router's guesses for a suggestion request.
type EntityTypes struct {
	Primary   core.EntityType   `json:"primary"`
	Secondary []core.EntityType `json:"secondary"`
}

// Suggestions is the advisor's response: valid field combinations for a
// prospective cross-reference search, computed without executing any query.
type Suggestions struct {
	EntityTypes     EntityTypes `json:"entity_types"`
	SingleField     [][]string  `json:"single_field"`
	DualField       [][]string  `json:"dual_field"`
	MultiField      [][]string  `json:"multi_field"`
	Recommended     [][]string  `json:"recommended"`
	SupportedFields []string    `json:"supported_fields"`
}

// Advisor recommends correlation field combinations. It reuses the entity
// router and the field catalog but never calls a fetch collaborator.
type Advisor struct {
	router  *search.Router
	catalog *search.Catalog
	logger  *zap.SugaredLogger
}

// NewAdvisor creates a suggestion advisor.
func NewAdvisor(router *search.Router, catalog *search.Catalog, logger *zap.SugaredLogger) *Advisor {
	return &Advisor{router: router, catalog: catalog, logger: logger}
}

// Suggest computes field combination suggestions. Empty or missing queries
// never error: the primary entity defaults to flows and the supported field
// set stays non-empty.
func (a *Advisor) Suggest(primaryQuery string, secondaryQueries []string) *Suggestions {
	primary := a.router.Route(primaryQuery)

	secondary := make([]core.EntityType, 0, len(secondaryQueries))
	for _, q := range secondaryQueries {
		secondary = append(secondary, a.router.Route(q))
	}

	supported := a.catalog.Intersect(primary, secondary...)

	s := &Suggestions{
		EntityTypes:     EntityTypes{Primary: primary, Secondary: secondary},
		SingleField:     make([][]string, 0, len(supported)),
		DualField:       [][]string{},
		MultiField:      [][]string{},
		Recommended:     [][]string{},
		SupportedFields: supported,
	}

	supportedSet := make(map[string]bool, len(supported))
	for _, f := range supported {
		supportedSet[f] = true
		s.SingleField = append(s.SingleField, []string{f})
	}

	for i := 0; i < len(supported); i++ {
		for j := i + 1; j < len(supported); j++ {
			s.DualField = append(s.DualField, []string{supported[i], supported[j]})
		}
	}

	base := supported
	if len(base) > multiFieldBase {
		base = base[:multiFieldBase]
	}
	for i := 0; i < len(base); i++ {
		for j := i + 1; j < len(base); j++ {
			for k := j + 1; k < len(base); k++ {
				s.MultiField = append(s.MultiField, []string{base[i], base[j], base[k]})
			}
		}
	}

	for _, combo := range recommendedCombos {
		contained := true
		for _, f := range combo {
			if !supportedSet[f] {
				contained = false
				break
			}
		}
		if contained {
			s.Recommended = append(s.Recommended, combo)
		}
	}

	return s
}
