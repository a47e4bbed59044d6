// Package engine drives the settlement forward: a frame loop that checks the
// wall clock, the two-phase production tick, and the Simulation that
// serialises every mutation from the loop and the API.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default cadences.
const (
	DefaultFrameInterval      = 100 * time.Millisecond
	DefaultProductionInterval = 3 * time.Second
)

// Engine checks the clock once per frame and fires a production tick when
// the production interval has elapsed since the last one. There is at most
// one tick per frame; a stalled loop does not catch up with a burst.
type Engine struct {
	Tick               uint64        // Production ticks fired so far (monotonic, restored on load)
	FrameInterval      time.Duration // How often the clock is checked
	ProductionInterval time.Duration // Wall time between production ticks

	// Now is the clock; tests replace it.
	Now func() time.Time

	// Called from the loop goroutine.
	OnProduction func(tick uint64)

	lastProduction time.Time
	stopOnce       sync.Once
	stop           chan struct{}
}

// NewEngine creates an engine with the given cadences. Zero values fall back
// to the defaults.
func NewEngine(frame, production time.Duration) *Engine {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	if production <= 0 {
		production = DefaultProductionInterval
	}
	return &Engine{
		FrameInterval:      frame,
		ProductionInterval: production,
		Now:                time.Now,
		stop:               make(chan struct{}),
	}
}

// Run calls Frame every FrameInterval. Blocks until ctx is cancelled or Stop
// is called.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started",
		"tick", e.Tick,
		"frame", e.FrameInterval,
		"production", e.ProductionInterval,
	)

	ticker := time.NewTicker(e.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick, "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return
		case <-ticker.C:
			e.Frame(e.Now())
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Frame runs one frame at wall time now and reports whether a production
// tick fired. The first frame only starts the clock.
func (e *Engine) Frame(now time.Time) bool {
	if e.lastProduction.IsZero() {
		e.lastProduction = now
		return false
	}
	if now.Sub(e.lastProduction) < e.ProductionInterval {
		return false
	}
	e.lastProduction = now
	e.Tick++
	if e.OnProduction != nil {
		e.OnProduction(e.Tick)
	}
	return true
}

// Elapsed converts a tick count to the wall time it represents.
func Elapsed(tick uint64, interval time.Duration) time.Duration {
	return time.Duration(tick) * interval
}
