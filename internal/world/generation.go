// Tile type assignment. Types are cosmetic, so the picker is swappable:
// a seeded uniform draw by default, or layered simplex noise for clustered
// biomes.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// TypePicker chooses the cosmetic type of the tile at a coordinate.
type TypePicker interface {
	Pick(coord HexCoord) TileType
}

// Picker names accepted by NewPicker.
const (
	PickerUniform = "uniform"
	PickerNoise   = "noise"
)

// NewPicker returns the picker registered under name, seeded with seed.
// Seed 0 draws a random seed.
func NewPicker(name string, seed int64) (TypePicker, error) {
	switch name {
	case "", PickerUniform:
		return NewUniformPicker(seed), nil
	case PickerNoise:
		return NewNoisePicker(seed), nil
	default:
		return nil, fmt.Errorf("unknown tile picker %q", name)
	}
}

// UniformPicker draws each type with equal probability, independent of position.
type UniformPicker struct {
	rng *rand.Rand
}

// NewUniformPicker creates a uniform picker. Seed 0 draws a random seed.
func NewUniformPicker(seed int64) *UniformPicker {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &UniformPicker{rng: rand.New(rand.NewSource(seed))}
}

// Pick ignores the coordinate and returns the next uniform draw.
func (p *UniformPicker) Pick(HexCoord) TileType {
	return TileTypes[p.rng.Intn(len(TileTypes))]
}

// NoisePicker samples multi-octave simplex noise so neighboring tiles tend
// to share a type.
type NoisePicker struct {
	noise opensimplex.Noise
}

// NewNoisePicker creates a noise picker. Seed 0 draws a random seed.
func NewNoisePicker(seed int64) *NoisePicker {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &NoisePicker{noise: opensimplex.NewNormalized(seed)}
}

// Pick maps the noise value at the tile's center onto the type list.
func (p *NoisePicker) Pick(coord HexCoord) TileType {
	// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
	x := float64(coord.Q) + float64(coord.R)*0.5
	y := float64(coord.R) * math.Sqrt(3.0) / 2.0

	v := octaveNoise(p.noise, x, y, 3, 0.18, 0.5)
	idx := int(v * float64(len(TileTypes)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(TileTypes) {
		idx = len(TileTypes) - 1
	}
	return TileTypes[idx]
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// FixedPicker always returns the same type. Handy for tests and demos.
type FixedPicker TileType

// Pick returns the fixed type.
func (p FixedPicker) Pick(HexCoord) TileType {
	return TileType(p)
}
