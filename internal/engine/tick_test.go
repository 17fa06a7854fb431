package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngine_StepCallbacks(t *testing.T) {
	e := NewEngine(time.Millisecond, 0)
	var ticks []uint64
	var saves []uint64
	e.OnTick = func(tick uint64) { ticks = append(ticks, tick) }
	e.OnAutosave = func(tick uint64) { saves = append(saves, tick) }
	e.AutosaveEvery = 3

	for i := 0; i < 7; i++ {
		e.Step()
	}
	if len(ticks) != 7 || ticks[0] != 1 || ticks[6] != 7 {
		t.Errorf("ticks = %v", ticks)
	}
	if len(saves) != 2 || saves[0] != 3 || saves[1] != 6 {
		t.Errorf("autosaves = %v, want [3 6]", saves)
	}
}

func TestEngine_ResumesFromTick(t *testing.T) {
	e := NewEngine(time.Millisecond, 41)
	e.Step()
	if e.Tick() != 42 {
		t.Errorf("tick = %d, want 42", e.Tick())
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := NewEngine(time.Millisecond, 0)
	var n atomic.Int64
	e.OnTick = func(uint64) { n.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n.Load() < 3 {
		t.Errorf("only %d ticks ran", n.Load())
	}
	if e.Running() {
		t.Error("engine still reports running")
	}
}

func TestEngine_PauseAndStop(t *testing.T) {
	e := NewEngine(time.Millisecond, 0)
	e.SetSpeed(0)
	var n atomic.Int64
	e.OnTick = func(uint64) { n.Add(1) }

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	if n.Load() != 0 {
		t.Errorf("paused engine ran %d ticks", n.Load())
	}
	for !e.Running() {
		time.Sleep(time.Millisecond)
	}
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
