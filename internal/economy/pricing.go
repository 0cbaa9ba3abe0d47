package economy

import "math"

// Rounding: integer amounts use math.Round, which breaks ties away from
// zero (2.5 → 3, -2.5 → -3). Environmental deltas from construction and
// ticks keep three decimals with the same tie rule.

// Round rounds x to the nearest integer, ties away from zero.
func Round(x float64) float64 {
	return math.Round(x)
}

// Round3 rounds x to three decimal places, ties away from zero.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// TilePrice is the energy cost of the next tile after bought purchases.
func TilePrice(base float64, bought int) float64 {
	return Round(base * float64(1+bought))
}

// BuildPrice is the energy cost of constructing e given how many the
// session has already built.
func BuildPrice(e *Entry) float64 {
	return Round(e.BaseEnergyBuyCost * float64(1+e.TimesBuilt))
}

// BuildImpact is the environment bar increase from constructing e.
func BuildImpact(e *Entry) float64 {
	return Round3(e.BaseEnvironmentBuildCost * float64(1+e.TimesBuilt))
}

// UpgradePrice is the energy cost of raising a building of kind e from level lv.
func UpgradePrice(e *Entry, lv int) float64 {
	return Round(e.BaseEnergyBuyCost * float64(1+lv))
}

// UpgradedDurability is the durability after upgrading from level lv.
func UpgradedDurability(e *Entry, lv int) int {
	return int(Round(float64(e.BaseDurability) * float64(1+(lv+1))))
}

// UpgradeImpact is the environment bar increase from upgrading from level lv.
func UpgradeImpact(e *Entry, lv int) float64 {
	return Round(e.BaseEnvironmentBuildCost * float64(1+(lv+1)))
}

// TickEnergy is the energy a building of kind e at level produces per tick.
func TickEnergy(e *Entry, level int) float64 {
	return Round(e.BaseEnergyProduction * float64(level))
}

// TickImpact is the environment bar change from a building of kind e at
// level per tick. Negative for clean sources.
func TickImpact(e *Entry, level int) float64 {
	return Round3(e.BaseEnvironmentUseCost * float64(level))
}
