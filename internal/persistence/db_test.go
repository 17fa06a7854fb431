package persistence

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/talgya/tilecity/internal/engine"
	"github.com/talgya/tilecity/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "city.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_GridRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if db.HasSavedGrid() {
		t.Fatal("fresh db should have no grid")
	}
	if _, err := db.LoadGrid(); !errors.Is(err, ErrNoSavedGrid) {
		t.Fatalf("err = %v, want ErrNoSavedGrid", err)
	}

	g := world.NewGrid(4, 6)
	g.Set(0, 0, world.TileRoad)
	g.Set(3, 5, world.TileFactory)
	g.Set(2, 1, world.TileZoneResidential)
	if err := db.SaveGrid(g); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}

	labels, err := db.LoadGrid()
	if err != nil {
		t.Fatalf("LoadGrid: %v", err)
	}
	if !reflect.DeepEqual(labels, g.Labels()) {
		t.Errorf("loaded map differs:\n%v\nwant\n%v", labels, g.Labels())
	}

	// A second save fully replaces the first.
	g.Set(0, 0, world.TileEmpty)
	if err := db.SaveGrid(g); err != nil {
		t.Fatal(err)
	}
	labels, _ = db.LoadGrid()
	if labels[0][0] != "empty" {
		t.Errorf("stale tile survived: %q", labels[0][0])
	}
}

func TestDB_WorldState(t *testing.T) {
	db := openTestDB(t)

	cfg := engine.DefaultConfig()
	cfg.Rows, cfg.Cols = 5, 5
	cfg.Seed = 3
	g := world.NewGrid(5, 5)
	g.Set(0, 2, world.TileRoad)
	sim := engine.NewSimulation(cfg, g)
	if err := sim.ApplyTool(engine.ToolHouse, world.Pos(1, 2)); err != nil {
		t.Fatal(err)
	}
	sim.Step(1)
	sim.Step(2)

	if err := db.SaveWorldState(sim); err != nil {
		t.Fatalf("SaveWorldState: %v", err)
	}
	if runID, err := db.GetMeta("run_id"); err != nil || runID != sim.RunID() {
		t.Errorf("run_id = %q, %v", runID, err)
	}
	events, err := db.RecentEvents(10)
	if err != nil || len(events) == 0 {
		t.Fatalf("events = %v, %v", events, err)
	}

	fresh := engine.NewSimulation(cfg, world.NewGrid(5, 5))
	tick, err := db.LoadWorldState(fresh)
	if err != nil {
		t.Fatalf("LoadWorldState: %v", err)
	}
	if tick != 2 || fresh.CurrentTick() != 2 {
		t.Errorf("tick = %d / %d, want 2", tick, fresh.CurrentTick())
	}
	if k, _ := fresh.TileAt(world.Pos(1, 2)); k != world.TileHouse {
		t.Errorf("house not restored, got %s", k)
	}

	wrong := engine.NewSimulation(engine.DefaultConfig(), world.NewGrid(9, 9))
	if _, err := db.LoadWorldState(wrong); !errors.Is(err, world.ErrDimensionMismatch) {
		t.Errorf("mismatched load err = %v", err)
	}
}

func TestDB_Meta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("k"); err != nil || v != "v2" {
		t.Errorf("GetMeta = %q, %v", v, err)
	}
}
