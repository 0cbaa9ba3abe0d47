package engine

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/hexwatt/internal/economy"
	"github.com/talgya/hexwatt/internal/world"
)

// Snapshot is a read-only projection of a session for clients.
type Snapshot struct {
	Energy         float64         `json:"energy"`
	EnvironmentBar float64         `json:"environment_bar"`
	TilePrice      float64         `json:"tile_price"`
	TilesBought    int             `json:"tiles_bought_count"`
	NextTilePrice  float64         `json:"next_tile_price"`
	Ticks          uint64          `json:"ticks"`
	Rings          int             `json:"rings"`
	Catalog        []economy.Entry `json:"catalog"`
	Tiles          []TileView      `json:"tiles"`
}

// TileView is one tile in a Snapshot.
type TileView struct {
	ID     int            `json:"id"`
	Q      int            `json:"q"`
	R      int            `json:"r"`
	Type   world.TileType `json:"tile_type"`
	Status Status         `json:"status"`
}

// Status encodes a tile's stage as "locked", "buyable", or "empty", or as
// the building descriptor {name, level, durability} when built.
type Status struct {
	State    world.TileState
	Building *world.Building
}

// MarshalJSON implements json.Marshaler.
func (st Status) MarshalJSON() ([]byte, error) {
	switch st.State {
	case world.StateLocked, world.StateBuyable, world.StateEmpty:
		return json.Marshal(st.State.String())
	case world.StateBuilt:
		if st.Building == nil {
			return nil, fmt.Errorf("built status without building")
		}
		return json.Marshal(st.Building)
	default:
		return nil, fmt.Errorf("unknown tile state %d", st.State)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (st *Status) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		switch tag {
		case "locked":
			*st = Status{State: world.StateLocked}
		case "buyable":
			*st = Status{State: world.StateBuyable}
		case "empty":
			*st = Status{State: world.StateEmpty}
		default:
			return fmt.Errorf("unknown tile status %q", tag)
		}
		return nil
	}
	var bld world.Building
	if err := json.Unmarshal(b, &bld); err != nil {
		return fmt.Errorf("tile status: %w", err)
	}
	*st = Status{State: world.StateBuilt, Building: &bld}
	return nil
}

// Snapshot projects the session's current state. The result shares no
// memory with the session.
func (s *Session) Snapshot() Snapshot {
	entries := s.Catalog.Entries()
	catalog := make([]economy.Entry, len(entries))
	for i, e := range entries {
		catalog[i] = *e
		catalog[i].Preferred = append([]world.TileType(nil), e.Preferred...)
	}

	tiles := make([]TileView, len(s.Map.Tiles))
	for i, t := range s.Map.Tiles {
		tiles[i] = TileView{
			ID:     t.ID,
			Q:      t.Coord.Q,
			R:      t.Coord.R,
			Type:   t.Type,
			Status: statusOf(t),
		}
	}

	return Snapshot{
		Energy:         s.Energy,
		EnvironmentBar: s.EnvironmentBar,
		TilePrice:      s.TilePrice,
		TilesBought:    s.TilesBought,
		NextTilePrice:  s.NextTilePrice(),
		Ticks:          s.Ticks,
		Rings:          s.Map.Rings,
		Catalog:        catalog,
		Tiles:          tiles,
	}
}

func statusOf(t *world.Tile) Status {
	st := Status{State: t.State()}
	if b := t.Building(); b != nil {
		cp := *b
		st.Building = &cp
	}
	return st
}

// Quote lists what the next action on a tile would cost.
type Quote struct {
	TileID      int                `json:"tile_id"`
	Type        world.TileType     `json:"tile_type"`
	Status      Status             `json:"status"`
	Price       *float64           `json:"price,omitempty"`        // Tile price when buyable, upgrade price when built
	BuildPrices map[string]float64 `json:"build_prices,omitempty"` // Per building when empty
	Suggested   []string           `json:"suggested,omitempty"`
	Affordable  bool               `json:"affordable"`
}

// Quote prices the actions available on a tile without changing anything.
func (s *Session) Quote(id int) (Quote, error) {
	t, err := s.tile(id)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{
		TileID:    t.ID,
		Type:      t.Type,
		Status:    statusOf(t),
		Suggested: s.Catalog.SuggestFor(t.Type),
	}

	switch t.State() {
	case world.StateLocked:
	case world.StateBuyable:
		p := s.NextTilePrice()
		q.Price = &p
		q.Affordable = s.Energy > p
	case world.StateEmpty:
		q.BuildPrices = make(map[string]float64, s.Catalog.Len())
		for _, e := range s.Catalog.Entries() {
			p := economy.BuildPrice(e)
			q.BuildPrices[e.Name] = p
			if s.Energy >= p {
				q.Affordable = true
			}
		}
	case world.StateBuilt:
		b := t.Building()
		if e, ok := s.Catalog.Lookup(b.Name); ok {
			p := economy.UpgradePrice(e, b.Level)
			q.Price = &p
			q.Affordable = s.Energy >= p
		}
	}
	return q, nil
}
