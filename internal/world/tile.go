package world

import (
	"errors"
	"fmt"
)

// TileType is the cosmetic category of a tile. It only biases which
// buildings are suggested; it never changes prices or yields.
type TileType uint8

const (
	TileForest TileType = iota
	TilePlain
	TileDesert
	TileMountain
	TileSea
	TileRiver
)

// TileTypes lists every tile type in declaration order.
var TileTypes = [...]TileType{TileForest, TilePlain, TileDesert, TileMountain, TileSea, TileRiver}

// String returns the lowercase wire name of the tile type.
func (t TileType) String() string {
	switch t {
	case TileForest:
		return "forest"
	case TilePlain:
		return "plain"
	case TileDesert:
		return "desert"
	case TileMountain:
		return "mountain"
	case TileSea:
		return "sea"
	case TileRiver:
		return "river"
	default:
		return "unknown"
	}
}

// ParseTileType maps a wire name back to its TileType.
func ParseTileType(s string) (TileType, error) {
	for _, t := range TileTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tile type %q", s)
}

// MarshalText encodes the tile type by name for JSON and YAML.
func (t TileType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tile type name.
func (t *TileType) UnmarshalText(b []byte) error {
	v, err := ParseTileType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TileState is the lifecycle stage of a tile. Exactly one holds at a time
// and stages only ever advance: Locked → Buyable → Empty → Built.
type TileState uint8

const (
	StateLocked  TileState = iota // Not adjacent to owned land
	StateBuyable                  // Adjacent to owned land, may be purchased
	StateEmpty                    // Owned, nothing built
	StateBuilt                    // Owned with a building
)

func (s TileState) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateBuyable:
		return "buyable"
	case StateEmpty:
		return "empty"
	case StateBuilt:
		return "built"
	default:
		return "unknown"
	}
}

// Owned reports whether the state counts as owned land for unlocking.
func (s TileState) Owned() bool {
	return s == StateEmpty || s == StateBuilt
}

// Building is an energy producer standing on a tile.
type Building struct {
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Durability int    `json:"durability"`
}

// Tile is a single hex of a player's grid.
type Tile struct {
	ID    int      `json:"id"`
	Coord HexCoord `json:"coord"`
	Type  TileType `json:"tile_type"`

	state    TileState
	building *Building // non-nil exactly when state == StateBuilt
}

// ErrTransition is returned when a tile is asked to move to a stage that
// does not directly follow its current one.
var ErrTransition = errors.New("invalid tile transition")

// State returns the tile's lifecycle stage.
func (t *Tile) State() TileState {
	return t.state
}

// Building returns the building on the tile, or nil unless the tile is Built.
func (t *Tile) Building() *Building {
	return t.building
}

// Unlock moves a Locked tile to Buyable.
func (t *Tile) Unlock() error {
	if t.state != StateLocked {
		return fmt.Errorf("%w: unlock tile %d in state %s", ErrTransition, t.ID, t.state)
	}
	t.state = StateBuyable
	return nil
}

// Claim moves a Buyable tile to Empty.
func (t *Tile) Claim() error {
	if t.state != StateBuyable {
		return fmt.Errorf("%w: claim tile %d in state %s", ErrTransition, t.ID, t.state)
	}
	t.state = StateEmpty
	return nil
}

// Build places b on an Empty tile.
func (t *Tile) Build(b *Building) error {
	if t.state != StateEmpty {
		return fmt.Errorf("%w: build on tile %d in state %s", ErrTransition, t.ID, t.state)
	}
	if b == nil {
		return fmt.Errorf("%w: build on tile %d without a building", ErrTransition, t.ID)
	}
	t.state = StateBuilt
	t.building = b
	return nil
}
