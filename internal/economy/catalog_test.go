package economy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/hexwatt/internal/world"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if c.Len() != 16 {
		t.Fatalf("expected 16 buildings, got %d", c.Len())
	}
	coal, ok := c.Lookup("Coal")
	if !ok {
		t.Fatalf("Coal missing")
	}
	if coal.BaseEnergyBuyCost != 100 || coal.BaseDurability != 100 || coal.InitialLevel != 1 || coal.TimesBuilt != 0 {
		t.Fatalf("unexpected Coal entry: %+v", coal)
	}
	if _, ok := c.Lookup("Fusion"); ok {
		t.Fatalf("unexpected Fusion entry")
	}

	perCategory := map[Category]int{}
	for _, e := range c.Entries() {
		perCategory[e.Category]++
	}
	for _, cat := range []Category{CategoryFossil, CategoryRenewable, CategoryGreen, CategoryAlternative} {
		if perCategory[cat] != 4 {
			t.Fatalf("category %s has %d buildings", cat, perCategory[cat])
		}
	}
}

func TestSuggestFor(t *testing.T) {
	c := DefaultCatalog()
	want := map[world.TileType][]string{
		world.TileDesert:   {"Solar", "Mirror plant"},
		world.TileRiver:    {"Hydro dam", "Nuclear"},
		world.TileMountain: {"Lithium extraction", "Geothermal", "Gravity"},
	}
	for tt, names := range want {
		got := c.SuggestFor(tt)
		if len(got) != len(names) {
			t.Fatalf("%s: got %v, want %v", tt, got, names)
		}
		for i := range names {
			if got[i] != names[i] {
				t.Fatalf("%s: got %v, want %v", tt, got, names)
			}
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := DefaultCatalog()
	b := a.Clone()
	ea, _ := a.Lookup("Wind")
	ea.TimesBuilt = 5
	eb, _ := b.Lookup("Wind")
	if eb.TimesBuilt != 0 {
		t.Fatalf("clone shares counters: %d", eb.TimesBuilt)
	}
	c := a.Clone()
	if ec, _ := c.Lookup("Wind"); ec.TimesBuilt != 5 {
		t.Fatalf("clone lost counter: %d", ec.TimesBuilt)
	}
	if ef, _ := a.Fresh().Lookup("Wind"); ef.TimesBuilt != 0 {
		t.Fatalf("fresh kept counter: %d", ef.TimesBuilt)
	}
}

func TestParseCatalog(t *testing.T) {
	doc := `
buildings:
  - name: Solar
    category: green
    energy_buy_cost: 150
    environment_build_cost: 0.5
    environment_use_cost: -0.2
    energy_production: 3
    durability: 80
    preferred_tiles: [desert, plain]
  - name: Coal
    category: fossil
    energy_buy_cost: 50
    environment_build_cost: 2
    environment_use_cost: 0.4
    energy_production: 2
    durability: 120
    initial_level: 2
`
	c, err := ParseCatalog([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	solar, _ := c.Lookup("Solar")
	if solar.InitialLevel != 1 {
		t.Fatalf("initial level should default to 1, got %d", solar.InitialLevel)
	}
	if solar.BaseEnvironmentUseCost != -0.2 || len(solar.Preferred) != 2 || solar.Preferred[1] != world.TilePlain {
		t.Fatalf("unexpected Solar: %+v", solar)
	}
	coal, _ := c.Lookup("Coal")
	if coal.InitialLevel != 2 {
		t.Fatalf("Coal initial level = %d", coal.InitialLevel)
	}
	if entries := c.Entries(); entries[0].Name != "Solar" || entries[1].Name != "Coal" {
		t.Fatalf("order not kept: %s, %s", entries[0].Name, entries[1].Name)
	}
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":      `buildings: []`,
		"duplicate":  "buildings:\n  - {name: A, durability: 1}\n  - {name: A, durability: 1}\n",
		"no name":    "buildings:\n  - {name: ' ', durability: 1}\n",
		"durability": "buildings:\n  - {name: A, durability: 0}\n",
		"negative":   "buildings:\n  - {name: A, durability: 1, energy_buy_cost: -5}\n",
	}
	for name, doc := range cases {
		if _, err := ParseCatalog([]byte(doc)); !errors.Is(err, ErrInvalidCatalog) {
			t.Fatalf("%s: expected ErrInvalidCatalog, got %v", name, err)
		}
	}
	if _, err := ParseCatalog([]byte("buildings:\n  - {name: A, durability: 1, preferred_tiles: [lava]}\n")); err == nil {
		t.Fatalf("expected error for unknown tile type")
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("buildings:\n  - {name: Wind, durability: 10, energy_buy_cost: 10}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 building, got %d", c.Len())
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
