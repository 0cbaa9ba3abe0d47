package economy

import "testing"

func TestRoundingTiesAwayFromZero(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{2.5, 3},
		{-2.5, -3},
		{0.5, 1},
		{1.49, 1},
		{-0.4, 0},
	}
	for _, tc := range cases {
		if got := Round(tc.in); got != tc.want {
			t.Fatalf("Round(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	cases3 := []struct {
		in, want float64
	}{
		{0.1, 0.1},
		{0.12345, 0.123},
		{0.0125, 0.013},
		{-0.0125, -0.013},
		{1.9999, 2},
	}
	for _, tc := range cases3 {
		if got := Round3(tc.in); got != tc.want {
			t.Fatalf("Round3(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTilePrice(t *testing.T) {
	if got := TilePrice(1000, 0); got != 1000 {
		t.Fatalf("first tile = %v", got)
	}
	if got := TilePrice(1000, 3); got != 4000 {
		t.Fatalf("fourth tile = %v", got)
	}
	if got := TilePrice(12.5, 1); got != 25 {
		t.Fatalf("fractional base = %v", got)
	}
}

func TestBuildingCurves(t *testing.T) {
	e := &Entry{BuildingDef: BuildingDef{
		Name:                     "Solar",
		BaseEnergyBuyCost:        100,
		BaseEnvironmentBuildCost: 1.5,
		BaseEnvironmentUseCost:   -0.25,
		BaseEnergyProduction:     2.5,
		BaseDurability:           40,
		InitialLevel:             1,
	}}

	if got := BuildPrice(e); got != 100 {
		t.Fatalf("first build = %v", got)
	}
	if got := BuildImpact(e); got != 1.5 {
		t.Fatalf("first build impact = %v", got)
	}
	e.TimesBuilt = 2
	if got := BuildPrice(e); got != 300 {
		t.Fatalf("third build = %v", got)
	}
	if got := BuildImpact(e); got != 4.5 {
		t.Fatalf("third build impact = %v", got)
	}

	if got := UpgradePrice(e, 1); got != 200 {
		t.Fatalf("upgrade from 1 = %v", got)
	}
	if got := UpgradedDurability(e, 1); got != 120 {
		t.Fatalf("durability after upgrade from 1 = %v", got)
	}
	if got := UpgradeImpact(e, 1); got != 5 { // 1.5 × 3 = 4.5 → 5
		t.Fatalf("upgrade impact from 1 = %v", got)
	}

	if got := TickEnergy(e, 1); got != 3 { // 2.5 → 3
		t.Fatalf("tick energy level 1 = %v", got)
	}
	if got := TickEnergy(e, 2); got != 5 {
		t.Fatalf("tick energy level 2 = %v", got)
	}
	if got := TickImpact(e, 3); got != -0.75 {
		t.Fatalf("tick impact level 3 = %v", got)
	}
}
