package claims

import (
	"testing"

	"github.com/talgya/tilecity/internal/world"
)

func TestRegistry_ClaimAndRelease(t *testing.T) {
	r := NewRegistry()
	p := world.Pos(2, 3)

	if r.IsClaimed(Home, p) {
		t.Fatal("fresh registry should have no claims")
	}
	if !r.Claim(Home, p) {
		t.Fatal("first claim should succeed")
	}
	if r.Claim(Home, p) {
		t.Error("second claim of the same house should fail")
	}
	if r.IsClaimed(Job, p) {
		t.Error("home claim must not leak into job claims")
	}
	if !r.Claim(Job, p) {
		t.Error("job claim at the same position is independent")
	}

	r.Release(Home, p)
	if r.IsClaimed(Home, p) {
		t.Error("released claim still present")
	}
	r.Release(Home, p) // no-op
	if r.Count(Job) != 1 {
		t.Errorf("job count = %d, want 1", r.Count(Job))
	}
}

func TestRegistry_ClaimedSorted(t *testing.T) {
	r := NewRegistry()
	r.Claim(Job, world.Pos(3, 1))
	r.Claim(Job, world.Pos(0, 5))
	r.Claim(Job, world.Pos(3, 0))

	got := r.Claimed(Job)
	want := []world.Position{world.Pos(0, 5), world.Pos(3, 0), world.Pos(3, 1)}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Claimed = %v, want %v", got, want)
		}
	}
}

func TestFindNearestUnclaimed(t *testing.T) {
	// Houses at (0,4) distance 4 and (2,0) distance 2 from (0,0);
	// nothing is walkable, which the search must ignore.
	g := world.NewGrid(3, 5)
	g.Set(0, 4, world.TileHouse)
	g.Set(2, 0, world.TileHouse)
	g.Set(1, 1, world.TileFactory)

	r := NewRegistry()
	start := world.Pos(0, 0)

	got, ok := FindNearestUnclaimed(g, r, Home, start)
	if !ok || got != world.Pos(2, 0) {
		t.Fatalf("nearest house = %v,%v; want (2,0)", got, ok)
	}

	r.Claim(Home, world.Pos(2, 0))
	got, ok = FindNearestUnclaimed(g, r, Home, start)
	if !ok || got != world.Pos(0, 4) {
		t.Fatalf("after claim nearest house = %v,%v; want (0,4)", got, ok)
	}

	r.Claim(Home, world.Pos(0, 4))
	if _, ok := FindNearestUnclaimed(g, r, Home, start); ok {
		t.Error("all houses claimed, expected none")
	}

	job, ok := FindNearestUnclaimed(g, r, Job, start)
	if !ok || job != world.Pos(1, 1) {
		t.Errorf("nearest job = %v,%v; want (1,1)", job, ok)
	}
}

func TestFindNearestUnclaimed_StartTileAndBounds(t *testing.T) {
	g := world.NewGrid(2, 2)
	g.Set(1, 1, world.TileHouse)
	r := NewRegistry()

	if got, ok := FindNearestUnclaimed(g, r, Home, world.Pos(1, 1)); !ok || got != world.Pos(1, 1) {
		t.Errorf("standing on an unclaimed house should return it, got %v,%v", got, ok)
	}
	if _, ok := FindNearestUnclaimed(g, r, Home, world.Pos(9, 9)); ok {
		t.Error("out-of-bounds start should find nothing")
	}
}

func TestFindNearestUnclaimed_TieBreakUpDownLeftRight(t *testing.T) {
	// Four houses at distance 1 around the center; "up" wins.
	g := world.NewGrid(3, 3)
	for _, p := range world.Pos(1, 1).Neighbors() {
		g.Set(p.Row, p.Col, world.TileHouse)
	}
	r := NewRegistry()
	order := []world.Position{world.Pos(0, 1), world.Pos(2, 1), world.Pos(1, 0), world.Pos(1, 2)}
	for _, want := range order {
		got, ok := FindNearestUnclaimed(g, r, Home, world.Pos(1, 1))
		if !ok || got != want {
			t.Fatalf("got %v,%v; want %v", got, ok, want)
		}
		r.Claim(Home, got)
	}
}

func TestFindNearestUnclaimed_Deterministic(t *testing.T) {
	g := world.NewGrid(6, 6)
	g.Set(0, 5, world.TileFactory)
	g.Set(5, 0, world.TileFactory)
	g.Set(3, 3, world.TileFactory)
	r := NewRegistry()
	r.Claim(Job, world.Pos(3, 3))

	first, _ := FindNearestUnclaimed(g, r, Job, world.Pos(2, 2))
	for i := 0; i < 10; i++ {
		again, _ := FindNearestUnclaimed(g, r, Job, world.Pos(2, 2))
		if again != first {
			t.Fatalf("result changed: %v vs %v", again, first)
		}
	}
}
