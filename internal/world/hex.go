// Package world provides the hex grid topology: coordinates, tiles, and
// unlock propagation. Uses axial coordinates (q, r) for the hex grid.
package world

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Add returns the coordinate offset by d.
func (h HexCoord) Add(d HexCoord) HexCoord {
	return HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
}

// Scale returns the coordinate multiplied by k.
func (h HexCoord) Scale(k int) HexCoord {
	return HexCoord{Q: h.Q * k, R: h.R * k}
}

// Origin is the center of every grid.
var Origin = HexCoord{}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
// Ring generation walks them in this order, so tile ids depend on it.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},  // east
	{Q: 1, R: -1}, // northeast
	{Q: 0, R: -1}, // northwest
	{Q: -1, R: 0}, // west
	{Q: -1, R: 1}, // southwest
	{Q: 0, R: 1},  // southeast
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = h.Add(dir)
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

// TileCount returns the number of hexes within nbRings of the origin,
// origin included: 1 + 3·n·(n+1).
func TileCount(nbRings int) int {
	if nbRings < 0 {
		return 0
	}
	return 1 + 3*nbRings*(nbRings+1)
}

// Ring returns the coordinates at exactly radius from the origin, starting at
// (-radius, radius) and stepping radius cells along each direction in order.
func Ring(radius int) []HexCoord {
	if radius <= 0 {
		return []HexCoord{Origin}
	}
	coords := make([]HexCoord, 0, 6*radius)
	cur := HexNeighborDirections[4].Scale(radius) // (-radius, radius)
	for _, dir := range HexNeighborDirections {
		for i := 0; i < radius; i++ {
			coords = append(coords, cur)
			cur = cur.Add(dir)
		}
	}
	return coords
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
