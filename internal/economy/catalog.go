// Package economy provides the building catalog and the pricing curves
// that drive the energy economy.
package economy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/hexwatt/internal/world"
)

// Category groups buildings for display. It has no mechanical effect.
type Category string

const (
	CategoryFossil      Category = "fossil"
	CategoryRenewable   Category = "renewable"
	CategoryGreen       Category = "green"
	CategoryAlternative Category = "alternative"
)

// BuildingDef is the static configuration of one building kind.
type BuildingDef struct {
	Name                     string           `json:"name" yaml:"name"`
	Category                 Category         `json:"category" yaml:"category"`
	BaseEnergyBuyCost        float64          `json:"base_energy_buy_cost" yaml:"energy_buy_cost"`
	BaseEnvironmentBuildCost float64          `json:"base_environment_build_cost" yaml:"environment_build_cost"`
	BaseEnvironmentUseCost   float64          `json:"base_environment_use_cost" yaml:"environment_use_cost"` // Negative for clean sources
	BaseEnergyProduction     float64          `json:"base_energy_production" yaml:"energy_production"`
	BaseDurability           int              `json:"base_durability" yaml:"durability"`
	InitialLevel             int              `json:"initial_level" yaml:"initial_level"`
	Preferred                []world.TileType `json:"preferred_tiles,omitempty" yaml:"preferred_tiles,omitempty"`
}

// Entry is a catalog definition plus the session's build counter.
type Entry struct {
	BuildingDef
	TimesBuilt int `json:"times_built"` // Only ever incremented
}

// Catalog is one session's view of the buildings it may construct.
// Definitions are read-only; TimesBuilt counters belong to the session.
type Catalog struct {
	entries []*Entry          // Declaration order
	index   map[string]*Entry // Name → entry
}

// ErrInvalidCatalog is returned for catalogs that fail validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// NewCatalog validates defs and builds a catalog with zeroed counters.
func NewCatalog(defs []BuildingDef) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no buildings", ErrInvalidCatalog)
	}
	c := &Catalog{
		entries: make([]*Entry, 0, len(defs)),
		index:   make(map[string]*Entry, len(defs)),
	}
	for i, d := range defs {
		d.Name = strings.TrimSpace(d.Name)
		if d.InitialLevel == 0 {
			d.InitialLevel = 1
		}
		if err := validateDef(d); err != nil {
			return nil, fmt.Errorf("%w: building %d: %v", ErrInvalidCatalog, i, err)
		}
		if _, dup := c.index[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate building %q", ErrInvalidCatalog, d.Name)
		}
		d.Preferred = append([]world.TileType(nil), d.Preferred...)
		e := &Entry{BuildingDef: d}
		c.entries = append(c.entries, e)
		c.index[d.Name] = e
	}
	return c, nil
}

func validateDef(d BuildingDef) error {
	switch {
	case d.Name == "":
		return errors.New("empty name")
	case d.BaseEnergyBuyCost < 0:
		return fmt.Errorf("%s: negative energy buy cost", d.Name)
	case d.BaseEnergyProduction < 0:
		return fmt.Errorf("%s: negative energy production", d.Name)
	case d.BaseDurability <= 0:
		return fmt.Errorf("%s: durability must be positive", d.Name)
	case d.InitialLevel < 1:
		return fmt.Errorf("%s: initial level must be at least 1", d.Name)
	}
	return nil
}

// Lookup returns the entry for name.
func (c *Catalog) Lookup(name string) (*Entry, bool) {
	e, ok := c.index[name]
	return e, ok
}

// Entries returns the entries in declaration order.
func (c *Catalog) Entries() []*Entry {
	return c.entries
}

// Len returns the number of building kinds.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Clone returns an independent copy, counters included.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		entries: make([]*Entry, len(c.entries)),
		index:   make(map[string]*Entry, len(c.entries)),
	}
	for i, e := range c.entries {
		cp := *e
		cp.Preferred = append([]world.TileType(nil), e.Preferred...)
		out.entries[i] = &cp
		out.index[cp.Name] = &cp
	}
	return out
}

// Fresh returns a copy with every counter reset, for a new session.
func (c *Catalog) Fresh() *Catalog {
	out := c.Clone()
	for _, e := range out.entries {
		e.TimesBuilt = 0
	}
	return out
}

// SuggestFor lists the buildings that favor tiles of type tt.
func (c *Catalog) SuggestFor(tt world.TileType) []string {
	var names []string
	for _, e := range c.entries {
		for _, p := range e.Preferred {
			if p == tt {
				names = append(names, e.Name)
				break
			}
		}
	}
	return names
}

// catalogFile is the YAML layout of a catalog override.
type catalogFile struct {
	Buildings []BuildingDef `yaml:"buildings"`
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	return NewCatalog(f.Buildings)
}

// DefaultCatalog returns the sixteen standard buildings with zeroed counters.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultBuildings())
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultBuildings returns the standard definitions. Every building starts
// from the same balance; tile preference is the only difference.
func DefaultBuildings() []BuildingDef {
	std := func(name string, cat Category, preferred ...world.TileType) BuildingDef {
		return BuildingDef{
			Name:                     name,
			Category:                 cat,
			BaseEnergyBuyCost:        100,
			BaseEnvironmentBuildCost: 1,
			BaseEnvironmentUseCost:   0.1,
			BaseEnergyProduction:     1,
			BaseDurability:           100,
			InitialLevel:             1,
			Preferred:                preferred,
		}
	}
	return []BuildingDef{
		std("Coal", CategoryFossil, world.TileForest),
		std("Offshore oil", CategoryFossil, world.TileSea),
		std("Fracking gas", CategoryFossil, world.TilePlain),
		std("Lithium extraction", CategoryFossil, world.TileMountain),

		std("Hydro dam", CategoryRenewable, world.TileRiver),
		std("Geothermal", CategoryRenewable, world.TileMountain),
		std("Tidal", CategoryRenewable, world.TileSea),
		std("Wood", CategoryRenewable, world.TileForest),

		std("Solar", CategoryGreen, world.TileDesert),
		std("Wind", CategoryGreen, world.TilePlain),
		std("Nuclear", CategoryGreen, world.TileRiver),
		std("Gravity", CategoryGreen, world.TileMountain),

		std("Hydrogen", CategoryAlternative, world.TilePlain),
		std("Synthetic fuel", CategoryAlternative, world.TileForest),
		std("Mirror plant", CategoryAlternative, world.TileDesert),
		std("Salinity gradient", CategoryAlternative, world.TileSea),
	}
}
