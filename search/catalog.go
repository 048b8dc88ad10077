package search

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"gatewatch/core"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the static per-entity table of correlatable fields. It is
// loaded once at startup from the embedded catalog definition.
type Catalog struct {
	fields map[core.EntityType][]string
	lookup map[core.EntityType]map[string]bool
}

// NewCatalog parses the embedded catalog definition. It panics only via
// MustCatalog; callers that want the error use this constructor.
func NewCatalog() (*Catalog, error) {
	raw := make(map[string][]string)
	if err := yaml.Unmarshal(catalogYAML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse field catalog: %w", err)
	}

	c := &Catalog{
		fields: make(map[core.EntityType][]string, len(raw)),
		lookup: make(map[core.EntityType]map[string]bool, len(raw)),
	}
	for name, fields := range raw {
		et := core.EntityType(name)
		if !core.ValidEntityType(et) {
			return nil, fmt.Errorf("field catalog references unknown entity type %q", name)
		}
		set := make(map[string]bool, len(fields))
		for _, f := range fields {
			if set[f] {
				return nil, fmt.Errorf("field catalog lists %s.%s twice", name, f)
			}
			set[f] = true
		}
		c.fields[et] = fields
		c.lookup[et] = set
	}
	return c, nil
}

// MustCatalog is NewCatalog for wiring paths where the embedded catalog is
// known to be valid.
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// Fields returns the correlatable fields of an entity in catalog order.
func (c *Catalog) Fields(et core.EntityType) []string {
	fields := c.fields[et]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// Correlatable reports whether field is a correlatable field of et.
func (c *Catalog) Correlatable(et core.EntityType, field string) bool {
	return c.lookup[et][field]
}

// Intersect computes the fields common to the primary entity and every
// secondary entity, in the primary entity's catalog order.
func (c *Catalog) Intersect(primary core.EntityType, secondaries ...core.EntityType) []string {
	var out []string
	for _, f := range c.fields[primary] {
		common := true
		for _, s := range secondaries {
			if !c.lookup[s][f] {
				common = false
				break
			}
		}
		if common {
			out = append(out, f)
		}
	}
	return out
}
