package world

// Map holds one player's hex grid: every tile plus a coordinate index.
// The tile set is fixed at creation; tiles are never added or removed.
type Map struct {
	Tiles []*Tile          `json:"tiles"` // Indexed by tile ID
	Index map[HexCoord]int `json:"-"`     // Coordinate → tile ID
	Rings int              `json:"rings"`
}

// NewMap builds the tiles for nbRings concentric rings around the origin.
// The origin gets ID 0 and starts Buyable; ring tiles get sequential IDs in
// ring-walk order and start Locked. The picker assigns each tile's type.
func NewMap(nbRings int, picker TypePicker) *Map {
	if nbRings < 0 {
		nbRings = 0
	}
	if picker == nil {
		picker = NewUniformPicker(0)
	}

	n := TileCount(nbRings)
	m := &Map{
		Tiles: make([]*Tile, 0, n),
		Index: make(map[HexCoord]int, n),
		Rings: nbRings,
	}

	m.add(Origin, StateBuyable, picker)
	for radius := 1; radius <= nbRings; radius++ {
		for _, c := range Ring(radius) {
			m.add(c, StateLocked, picker)
		}
	}
	return m
}

func (m *Map) add(c HexCoord, state TileState, picker TypePicker) {
	id := len(m.Tiles)
	m.Tiles = append(m.Tiles, &Tile{
		ID:    id,
		Coord: c,
		Type:  picker.Pick(c),
		state: state,
	})
	m.Index[c] = id
}

// Get returns the tile with the given ID, or nil if out of range.
func (m *Map) Get(id int) *Tile {
	if id < 0 || id >= len(m.Tiles) {
		return nil
	}
	return m.Tiles[id]
}

// At returns the tile at the given coordinate, or nil if off the grid.
func (m *Map) At(coord HexCoord) *Tile {
	id, ok := m.Index[coord]
	if !ok {
		return nil
	}
	return m.Tiles[id]
}

// NeighborTiles returns the tiles adjacent to t that exist on the grid.
func (m *Map) NeighborTiles(t *Tile) []*Tile {
	out := make([]*Tile, 0, 6)
	for _, c := range t.Coord.Neighbors() {
		if n := m.At(c); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// PropagateUnlocks makes Buyable every Locked tile that touches an owned
// (Empty or Built) tile. Candidates are collected over the whole grid before
// any is flipped, so a tile unlocked here does not unlock its own neighbors
// until the next call. Returns the IDs that changed.
func (m *Map) PropagateUnlocks() []int {
	var toUnlock []*Tile
	for _, t := range m.Tiles {
		if t.state != StateLocked {
			continue
		}
		for _, n := range m.NeighborTiles(t) {
			if n.state.Owned() {
				toUnlock = append(toUnlock, t)
				break // one owned neighbor is enough
			}
		}
	}

	ids := make([]int, 0, len(toUnlock))
	for _, t := range toUnlock {
		if err := t.Unlock(); err != nil {
			continue
		}
		ids = append(ids, t.ID)
	}
	return ids
}

// CountByState returns how many tiles are in each lifecycle stage.
func (m *Map) CountByState() map[TileState]int {
	counts := make(map[TileState]int, 4)
	for _, t := range m.Tiles {
		counts[t.state]++
	}
	return counts
}

// TypeCounts returns a summary of tile type distribution.
func (m *Map) TypeCounts() map[TileType]int {
	counts := make(map[TileType]int)
	for _, t := range m.Tiles {
		counts[t.Type]++
	}
	return counts
}

// TileCount returns the total number of tiles in the map.
func (m *Map) TileCount() int {
	return len(m.Tiles)
}
