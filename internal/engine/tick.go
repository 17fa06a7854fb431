// Package engine provides the tick-based simulation loop and the city
// simulation it drives.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the simulation forward.
type Engine struct {
	Interval time.Duration // Base tick interval

	// Callbacks, populated during setup.
	OnTick        func(tick uint64) // Every tick
	OnAutosave    func(tick uint64) // Every AutosaveEvery ticks
	AutosaveEvery uint64

	mu      sync.Mutex
	tick    uint64  // Monotonic, never resets
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine ticking at interval, starting after tick.
func NewEngine(interval time.Duration, tick uint64) *Engine {
	return &Engine{
		Interval: interval,
		tick:     tick,
		speed:    1.0,
	}
}

// Tick returns the last tick run.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero or less pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	e.speed = max(speed, 0)
	e.mu.Unlock()
	slog.Info("simulation speed changed", "speed", speed)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. It blocks until ctx is done or Stop is
// called.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		slog.Info("simulation engine stopped", "tick", e.Tick())
	}()

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // Paused: check again shortly.
		if speed > 0 {
			start := time.Now()
			e.Step()
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		if wait <= 0 {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.AutosaveEvery > 0 && tick%e.AutosaveEvery == 0 && e.OnAutosave != nil {
		e.OnAutosave(tick)
	}
}
