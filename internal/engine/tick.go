package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTickInterval is the wall-clock time between economy ticks.
const DefaultTickInterval = 5 * time.Second

// Engine is the caller-owned timer that drives ticks. Sessions never
// schedule their own ticks; OnTick decides which sessions to advance.
type Engine struct {
	Interval time.Duration // Base tick interval
	OnTick   func(tick uint64)

	mu    sync.Mutex
	tick  uint64  // Monotonic, never resets
	speed float64 // Multiplier: 1.0 = real-time, 0 = paused
}

// NewEngine creates an engine with the given interval at normal speed.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Engine{
		Interval: interval,
		speed:    1.0,
	}
}

// Tick returns the number of ticks fired so far.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier. Zero or negative pauses ticking.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = speed
}

// Run fires ticks until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("tick engine started", "interval", e.Interval, "speed", e.Speed())
	defer func() {
		slog.Info("tick engine stopped", "tick", e.Tick())
	}()

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // Paused: check again shortly
		if speed > 0 {
			wait = time.Duration(float64(e.Interval) / speed)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if speed > 0 {
			e.step()
		}
	}
}

// step advances the engine by one tick.
func (e *Engine) step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
}
