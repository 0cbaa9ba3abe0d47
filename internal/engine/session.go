// Package engine provides the economy engine: one player's session state,
// the actions that mutate it, and the timer that drives its ticks.
package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/hexwatt/internal/economy"
	"github.com/talgya/hexwatt/internal/world"
)

// Failure conditions. Every action either applies completely or returns
// one of these and leaves the session untouched.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTileState  = errors.New("invalid tile state")
	ErrUnknownBuilding   = errors.New("unknown building")
	ErrTileNotFound      = errors.New("tile not found")
)

// Params are the starting conditions of a session.
type Params struct {
	InitialEnergy      float64 `yaml:"initial_energy" json:"initial_energy"`
	InitialEnvironment float64 `yaml:"initial_environment" json:"initial_environment"`
	BaseTilePrice      float64 `yaml:"base_tile_price" json:"base_tile_price"`
	Rings              int     `yaml:"rings" json:"rings"`
}

// DefaultParams returns the standard opening: 10000 energy, a clean
// environment, tiles from 1000 energy, and four rings (61 tiles).
func DefaultParams() Params {
	return Params{
		InitialEnergy:      10000,
		InitialEnvironment: 0,
		BaseTilePrice:      1000,
		Rings:              4,
	}
}

// Session holds one player's complete economy. It has no internal locking;
// callers must serialize access.
type Session struct {
	Energy         float64 // May go fractional, never checked against zero outside purchases
	EnvironmentBar float64 // Unbounded either direction
	TilePrice      float64 // Base price of a tile
	TilesBought    int     // Incremented once per successful purchase, never recomputed
	Ticks          uint64  // Ticks applied so far

	Map     *world.Map
	Catalog *economy.Catalog
}

// NewSession creates a session from p. The catalog is copied with fresh
// counters so sessions never share state; nil means the default catalog.
// The picker chooses cosmetic tile types.
func NewSession(p Params, catalog *economy.Catalog, picker world.TypePicker) *Session {
	if catalog == nil {
		catalog = economy.DefaultCatalog()
	}
	return &Session{
		Energy:         p.InitialEnergy,
		EnvironmentBar: p.InitialEnvironment,
		TilePrice:      p.BaseTilePrice,
		Map:            world.NewMap(p.Rings, picker),
		Catalog:        catalog.Fresh(),
	}
}

// Action names an operation recorded in a Receipt.
type Action string

const (
	ActionBuyTile         Action = "buy_tile"
	ActionBuyBuilding     Action = "buy_building"
	ActionUpgradeBuilding Action = "upgrade_building"
)

// Receipt describes a successfully applied action.
type Receipt struct {
	Action      Action  `json:"action"`
	TileID      int     `json:"tile_id"`
	Building    string  `json:"building,omitempty"`
	Level       int     `json:"level,omitempty"`
	Price       float64 `json:"price"`
	Impact      float64 `json:"impact"`
	Unlocked    []int   `json:"unlocked,omitempty"`
	Energy      float64 `json:"energy"`
	Environment float64 `json:"environment_bar"`
}

func (s *Session) receipt(a Action, tileID int) Receipt {
	return Receipt{Action: a, TileID: tileID, Energy: s.Energy, Environment: s.EnvironmentBar}
}

func (s *Session) tile(id int) (*world.Tile, error) {
	t := s.Map.Get(id)
	if t == nil {
		return nil, fmt.Errorf("%w: %d", ErrTileNotFound, id)
	}
	return t, nil
}

// NextTilePrice is what the next tile purchase costs.
func (s *Session) NextTilePrice() float64 {
	return economy.TilePrice(s.TilePrice, s.TilesBought)
}

// PurchaseTile buys a Buyable tile. Energy must strictly exceed the price.
// On success the tile becomes Empty and its Locked neighbors become Buyable.
func (s *Session) PurchaseTile(id int) (Receipt, error) {
	t, err := s.tile(id)
	if err != nil {
		return Receipt{}, err
	}
	if t.State() != world.StateBuyable {
		return Receipt{}, fmt.Errorf("%w: tile %d is %s, not buyable", ErrInvalidTileState, id, t.State())
	}
	price := s.NextTilePrice()
	if !(s.Energy > price) {
		return Receipt{}, fmt.Errorf("%w: tile %d costs %.0f, have %.2f", ErrInsufficientFunds, id, price, s.Energy)
	}
	if err := t.Claim(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidTileState, err)
	}

	s.Energy -= price
	s.TilesBought++
	unlocked := s.Map.PropagateUnlocks()

	r := s.receipt(ActionBuyTile, id)
	r.Price = price
	r.Unlocked = unlocked
	return r, nil
}

// ConstructBuilding places a new building of kind name on an Empty tile.
// Price and environmental cost grow with how many of that kind the session
// has built.
func (s *Session) ConstructBuilding(id int, name string) (Receipt, error) {
	t, err := s.tile(id)
	if err != nil {
		return Receipt{}, err
	}
	if t.State() != world.StateEmpty {
		return Receipt{}, fmt.Errorf("%w: tile %d is %s, not empty", ErrInvalidTileState, id, t.State())
	}
	e, ok := s.Catalog.Lookup(name)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, name)
	}
	price := economy.BuildPrice(e)
	if s.Energy < price {
		return Receipt{}, fmt.Errorf("%w: %s costs %.0f, have %.2f", ErrInsufficientFunds, name, price, s.Energy)
	}
	impact := economy.BuildImpact(e)
	b := &world.Building{
		Name:       e.Name,
		Level:      e.InitialLevel,
		Durability: e.BaseDurability,
	}
	if err := t.Build(b); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidTileState, err)
	}

	s.Energy -= price
	s.EnvironmentBar += impact
	e.TimesBuilt++

	r := s.receipt(ActionBuyBuilding, id)
	r.Building = b.Name
	r.Level = b.Level
	r.Price = price
	r.Impact = impact
	return r, nil
}

// UpgradeBuilding raises the level of the building on a Built tile by one.
// Cost, durability, and environmental cost scale linearly with level.
func (s *Session) UpgradeBuilding(id int) (Receipt, error) {
	t, err := s.tile(id)
	if err != nil {
		return Receipt{}, err
	}
	b := t.Building()
	if t.State() != world.StateBuilt || b == nil {
		return Receipt{}, fmt.Errorf("%w: tile %d is %s, not built", ErrInvalidTileState, id, t.State())
	}
	e, ok := s.Catalog.Lookup(b.Name)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, b.Name)
	}
	lv := b.Level
	price := economy.UpgradePrice(e, lv)
	if s.Energy < price {
		return Receipt{}, fmt.Errorf("%w: upgrade to level %d costs %.0f, have %.2f", ErrInsufficientFunds, lv+1, price, s.Energy)
	}
	impact := economy.UpgradeImpact(e, lv)

	s.Energy -= price
	b.Level = lv + 1
	b.Durability = economy.UpgradedDurability(e, lv)
	s.EnvironmentBar += impact

	r := s.receipt(ActionUpgradeBuilding, id)
	r.Building = b.Name
	r.Level = b.Level
	r.Price = price
	r.Impact = impact
	return r, nil
}

// TickReport summarizes one tick.
type TickReport struct {
	Tick      uint64  `json:"tick"`
	Producing int     `json:"producing"` // Built tiles that contributed
	Energy    float64 `json:"energy_delta"`
	Impact    float64 `json:"environment_delta"`
}

// Tick converts every standing building into energy and environmental
// impact. Each tile contributes independently.
func (s *Session) Tick() TickReport {
	return s.tickTiles(s.Map.Tiles)
}

func (s *Session) tickTiles(tiles []*world.Tile) TickReport {
	var rep TickReport
	for _, t := range tiles {
		b := t.Building()
		if t.State() != world.StateBuilt || b == nil {
			continue
		}
		e, ok := s.Catalog.Lookup(b.Name)
		if !ok {
			continue
		}
		rep.Energy += economy.TickEnergy(e, b.Level)
		rep.Impact += economy.TickImpact(e, b.Level)
		rep.Producing++
	}
	s.Energy += rep.Energy
	s.EnvironmentBar += rep.Impact
	s.Ticks++
	rep.Tick = s.Ticks
	return rep
}
