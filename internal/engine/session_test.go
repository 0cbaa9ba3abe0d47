package engine

import (
	"errors"
	"testing"

	"github.com/talgya/hexwatt/internal/economy"
	"github.com/talgya/hexwatt/internal/world"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(DefaultParams(), nil, world.NewUniformPicker(1))
}

func TestCreateSession(t *testing.T) {
	s := newTestSession(t)
	if s.Map.TileCount() != 61 {
		t.Fatalf("expected 61 tiles, got %d", s.Map.TileCount())
	}
	if s.Energy != 10000 || s.EnvironmentBar != 0 || s.TilePrice != 1000 || s.TilesBought != 0 {
		t.Fatalf("unexpected opening state: %+v", s)
	}
	counts := s.Map.CountByState()
	if counts[world.StateBuyable] != 1 || counts[world.StateLocked] != 60 {
		t.Fatalf("unexpected state counts: %v", counts)
	}
	if s.Map.Get(0).State() != world.StateBuyable {
		t.Fatalf("origin is %s", s.Map.Get(0).State())
	}
}

func TestPurchaseOrigin(t *testing.T) {
	s := newTestSession(t)
	r, err := s.PurchaseTile(0)
	if err != nil {
		t.Fatalf("purchase origin: %v", err)
	}
	if r.Price != 1000 || s.Energy != 9000 || s.TilesBought != 1 {
		t.Fatalf("price=%v energy=%v bought=%d", r.Price, s.Energy, s.TilesBought)
	}
	if len(r.Unlocked) != 6 {
		t.Fatalf("expected 6 unlocked tiles, got %v", r.Unlocked)
	}
	for _, c := range world.Origin.Neighbors() {
		if st := s.Map.At(c).State(); st != world.StateBuyable {
			t.Fatalf("neighbor %v is %s", c, st)
		}
	}
	if s.Map.Get(0).State() != world.StateEmpty {
		t.Fatalf("origin is %s after purchase", s.Map.Get(0).State())
	}

	// The second tile costs twice the base.
	if s.NextTilePrice() != 2000 {
		t.Fatalf("next tile price %v", s.NextTilePrice())
	}
	r, err = s.PurchaseTile(1)
	if err != nil {
		t.Fatalf("purchase tile 1: %v", err)
	}
	if r.Price != 2000 || s.Energy != 7000 || s.TilesBought != 2 {
		t.Fatalf("price=%v energy=%v bought=%d", r.Price, s.Energy, s.TilesBought)
	}
}

func TestPurchaseRequiresStrictlyMoreEnergy(t *testing.T) {
	p := DefaultParams()
	p.InitialEnergy = 1000
	s := NewSession(p, nil, world.FixedPicker(world.TilePlain))

	_, err := s.PurchaseTile(0)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if s.Energy != 1000 || s.TilesBought != 0 || s.Map.Get(0).State() != world.StateBuyable {
		t.Fatalf("failed purchase changed state: energy=%v bought=%d state=%s",
			s.Energy, s.TilesBought, s.Map.Get(0).State())
	}
	if s.Map.CountByState()[world.StateBuyable] != 1 {
		t.Fatalf("failed purchase unlocked tiles")
	}
}

func TestPurchaseErrors(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.PurchaseTile(61); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound, got %v", err)
	}
	if _, err := s.PurchaseTile(-1); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound, got %v", err)
	}
	if _, err := s.PurchaseTile(10); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("expected ErrInvalidTileState for locked tile, got %v", err)
	}
	if _, err := s.PurchaseTile(0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PurchaseTile(0); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("expected ErrInvalidTileState for owned tile, got %v", err)
	}
	if s.Energy != 9000 || s.TilesBought != 1 {
		t.Fatalf("failed purchases changed state: energy=%v bought=%d", s.Energy, s.TilesBought)
	}
}

// ownedSession returns a session whose origin is owned with the given energy left.
func ownedSession(t *testing.T, energy float64) *Session {
	t.Helper()
	s := newTestSession(t)
	if _, err := s.PurchaseTile(0); err != nil {
		t.Fatal(err)
	}
	s.Energy = energy
	return s
}

func TestConstructAndUpgrade(t *testing.T) {
	s := ownedSession(t, 200)

	r, err := s.ConstructBuilding(0, "Solar")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if r.Price != 100 || s.Energy != 100 {
		t.Fatalf("price=%v energy=%v", r.Price, s.Energy)
	}
	tile := s.Map.Get(0)
	b := tile.Building()
	if tile.State() != world.StateBuilt || b == nil || b.Name != "Solar" || b.Level != 1 || b.Durability != 100 {
		t.Fatalf("unexpected tile after construct: %s %+v", tile.State(), b)
	}
	if s.EnvironmentBar != 1 {
		t.Fatalf("environment bar %v", s.EnvironmentBar)
	}
	if e, _ := s.Catalog.Lookup("Solar"); e.TimesBuilt != 1 {
		t.Fatalf("times built %d", e.TimesBuilt)
	}

	// Upgrading from level 1 costs 200; only 100 is left.
	if _, err := s.UpgradeBuilding(0); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if b.Level != 1 || b.Durability != 100 || s.Energy != 100 || s.EnvironmentBar != 1 {
		t.Fatalf("failed upgrade changed state: %+v energy=%v env=%v", b, s.Energy, s.EnvironmentBar)
	}

	s.Energy = 200
	r, err = s.UpgradeBuilding(0)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if r.Price != 200 || s.Energy != 0 || b.Level != 2 || b.Durability != 300 {
		t.Fatalf("after upgrade: price=%v energy=%v building=%+v", r.Price, s.Energy, b)
	}
	if s.EnvironmentBar != 4 { // 1 from construction + round(1 × 3)
		t.Fatalf("environment bar %v", s.EnvironmentBar)
	}
}

func TestConstructPriceInflation(t *testing.T) {
	s := newTestSession(t)
	s.Energy = 1e6
	for _, id := range []int{0, 1, 2} {
		if _, err := s.PurchaseTile(id); err != nil {
			t.Fatalf("purchase %d: %v", id, err)
		}
	}
	want := []float64{100, 200, 300}
	for i, id := range []int{0, 1, 2} {
		r, err := s.ConstructBuilding(id, "Wind")
		if err != nil {
			t.Fatalf("construct %d: %v", id, err)
		}
		if r.Price != want[i] || r.Impact != float64(i+1) {
			t.Fatalf("build %d: price=%v impact=%v", i, r.Price, r.Impact)
		}
	}
	if e, _ := s.Catalog.Lookup("Wind"); e.TimesBuilt != 3 {
		t.Fatalf("times built %d", e.TimesBuilt)
	}
	if e, _ := s.Catalog.Lookup("Solar"); e.TimesBuilt != 0 {
		t.Fatalf("other entries should not inflate: %d", e.TimesBuilt)
	}
}

func TestConstructPreconditions(t *testing.T) {
	s := newTestSession(t)
	before := s.Energy

	if _, err := s.ConstructBuilding(0, "Coal"); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("buyable tile: expected ErrInvalidTileState, got %v", err)
	}
	if _, err := s.ConstructBuilding(5, "Coal"); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("locked tile: expected ErrInvalidTileState, got %v", err)
	}
	if _, err := s.ConstructBuilding(99, "Coal"); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound, got %v", err)
	}
	if s.Energy != before {
		t.Fatalf("energy changed on failed construction")
	}

	if _, err := s.PurchaseTile(0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ConstructBuilding(0, "Fusion"); !errors.Is(err, ErrUnknownBuilding) {
		t.Fatalf("expected ErrUnknownBuilding, got %v", err)
	}
	if s.Map.Get(0).State() != world.StateEmpty {
		t.Fatalf("unknown building changed tile state")
	}

	s.Energy = 99
	if _, err := s.ConstructBuilding(0, "Coal"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if e, _ := s.Catalog.Lookup("Coal"); e.TimesBuilt != 0 || s.Map.Get(0).State() != world.StateEmpty || s.EnvironmentBar != 0 {
		t.Fatalf("failed construction changed state")
	}

	s.Energy = 100 // exactly the price is enough
	if _, err := s.ConstructBuilding(0, "Coal"); err != nil {
		t.Fatalf("construct with exact funds: %v", err)
	}
	if _, err := s.ConstructBuilding(0, "Wind"); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("built tile: expected ErrInvalidTileState, got %v", err)
	}
	if b := s.Map.Get(0).Building(); b.Name != "Coal" {
		t.Fatalf("building replaced by %s", b.Name)
	}
}

func TestUpgradeRequiresBuilding(t *testing.T) {
	s := ownedSession(t, 1000)
	if _, err := s.UpgradeBuilding(0); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("empty tile: expected ErrInvalidTileState, got %v", err)
	}
	if _, err := s.UpgradeBuilding(3); !errors.Is(err, ErrInvalidTileState) {
		t.Fatalf("buyable tile: expected ErrInvalidTileState, got %v", err)
	}
	if _, err := s.UpgradeBuilding(1000); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound, got %v", err)
	}
	if s.Energy != 1000 {
		t.Fatalf("energy changed: %v", s.Energy)
	}
}

func TestSessionsDoNotShareCounters(t *testing.T) {
	cat := economy.DefaultCatalog()
	a := NewSession(DefaultParams(), cat, world.NewUniformPicker(1))
	b := NewSession(DefaultParams(), cat, world.NewUniformPicker(2))
	if _, err := a.PurchaseTile(0); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ConstructBuilding(0, "Coal"); err != nil {
		t.Fatal(err)
	}
	if e, _ := b.Catalog.Lookup("Coal"); e.TimesBuilt != 0 {
		t.Fatalf("session b sees %d builds", e.TimesBuilt)
	}
	if e, _ := cat.Lookup("Coal"); e.TimesBuilt != 0 {
		t.Fatalf("template catalog mutated: %d", e.TimesBuilt)
	}
}

func TestTick(t *testing.T) {
	s := ownedSession(t, 10000)
	if rep := s.Tick(); rep.Producing != 0 || rep.Energy != 0 || s.Ticks != 1 {
		t.Fatalf("tick without buildings: %+v", rep)
	}

	if _, err := s.ConstructBuilding(0, "Coal"); err != nil {
		t.Fatal(err)
	}
	energy, env := s.Energy, s.EnvironmentBar
	rep := s.Tick()
	if rep.Producing != 1 || rep.Energy != 1 || rep.Impact != 0.1 || rep.Tick != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if s.Energy != energy+1 || s.EnvironmentBar != env+0.1 {
		t.Fatalf("energy=%v env=%v", s.Energy, s.EnvironmentBar)
	}

	if _, err := s.UpgradeBuilding(0); err != nil {
		t.Fatal(err)
	}
	energy = s.Energy
	rep = s.Tick()
	if rep.Energy != 2 || rep.Impact != 0.2 || s.Energy != energy+2 {
		t.Fatalf("level 2 tick: %+v energy=%v", rep, s.Energy)
	}
}

func cleanCatalog(t *testing.T) *economy.Catalog {
	t.Helper()
	c, err := economy.NewCatalog([]economy.BuildingDef{
		{Name: "Solar", BaseEnergyBuyCost: 10, BaseEnvironmentBuildCost: 1, BaseEnvironmentUseCost: -0.25, BaseEnergyProduction: 3, BaseDurability: 50},
		{Name: "Coal", BaseEnergyBuyCost: 10, BaseEnvironmentBuildCost: 2, BaseEnvironmentUseCost: 0.5, BaseEnergyProduction: 5, BaseDurability: 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestTickCleanSourceLowersEnvironment(t *testing.T) {
	s := NewSession(DefaultParams(), cleanCatalog(t), world.FixedPicker(world.TileDesert))
	if _, err := s.PurchaseTile(0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ConstructBuilding(0, "Solar"); err != nil {
		t.Fatal(err)
	}
	env := s.EnvironmentBar
	s.Tick()
	if s.EnvironmentBar != env-0.25 {
		t.Fatalf("environment %v, want %v", s.EnvironmentBar, env-0.25)
	}
}

func TestTickOrderIndependent(t *testing.T) {
	build := func() *Session {
		s := NewSession(DefaultParams(), cleanCatalog(t), world.FixedPicker(world.TilePlain))
		s.Energy = 1e6
		names := []string{"Solar", "Coal", "Coal", "Solar", "Coal", "Solar", "Coal"}
		for id := 0; id < 7; id++ {
			if _, err := s.PurchaseTile(id); err != nil {
				t.Fatalf("purchase %d: %v", id, err)
			}
			if _, err := s.ConstructBuilding(id, names[id]); err != nil {
				t.Fatalf("construct %d: %v", id, err)
			}
		}
		for _, id := range []int{1, 1, 3} {
			if _, err := s.UpgradeBuilding(id); err != nil {
				t.Fatalf("upgrade %d: %v", id, err)
			}
		}
		return s
	}

	forward := build()
	reverse := build()

	tiles := reverse.Map.Tiles
	reversed := make([]*world.Tile, len(tiles))
	for i, tile := range tiles {
		reversed[len(tiles)-1-i] = tile
	}

	a := forward.Tick()
	b := reverse.tickTiles(reversed)
	if a != b {
		t.Fatalf("reports differ: %+v vs %+v", a, b)
	}
	if forward.Energy != reverse.Energy || forward.EnvironmentBar != reverse.EnvironmentBar {
		t.Fatalf("order changed totals: %v/%v vs %v/%v",
			forward.Energy, forward.EnvironmentBar, reverse.Energy, reverse.EnvironmentBar)
	}
}
