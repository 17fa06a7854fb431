package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/talgya/tilecity/internal/engine"
	"github.com/talgya/tilecity/internal/persistence"
	"github.com/talgya/tilecity/internal/world"
)

// City is a simulation with its engine and storage.
type City struct {
	Sim          *engine.Simulation
	Eng          *engine.Engine
	DB           *persistence.DB // nil when storage is disabled
	SnapshotPath string
}

func setupLogger(level string, w io.Writer) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func openCity(cmd *cli.Command) (*City, error) {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("seed") {
		cfg.Seed = int64(cmd.Int("seed"))
	}
	return buildCity(cfg, cmd.String("db"), cmd.String("snapshot"), float64(cmd.Float("speed")))
}

func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.DefaultConfig(), nil
	}
	cfg, err := engine.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	slog.Info("config loaded", "path", path)
	return cfg, nil
}

// buildCity restores the saved map from the database, else from the
// snapshot file, else generates a fresh one, and wires the engine.
func buildCity(cfg engine.Config, dbPath, snapshotPath string, speed float64) (*City, error) {
	city := &City{SnapshotPath: snapshotPath}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := persistence.Open(dbPath)
		if err != nil {
			return nil, err
		}
		city.DB = db
		slog.Info("database opened", "path", dbPath)
	}

	grid, tick, err := city.restoreGrid()
	if err != nil {
		city.Close()
		return nil, err
	}
	if grid == nil {
		slog.Info("no saved map found, generating a new city...")
		var outside world.Position
		grid, outside = world.Generate(cfg.GenConfig())
		slog.Info("city generated", "grid", grid, "outside_connection", outside)
	}
	if rows, cols := grid.Dims(); rows != cfg.Rows || cols != cfg.Cols {
		slog.Info("using saved map size", "rows", rows, "cols", cols)
		cfg.Rows, cfg.Cols = rows, cols
	}

	city.Sim = engine.NewSimulation(cfg, grid)
	city.Sim.SetLastTick(tick)

	city.Eng = engine.NewEngine(cfg.TickInterval(), tick)
	city.Eng.SetSpeed(speed)
	city.Eng.AutosaveEvery = cfg.AutosaveEveryTicks
	city.Eng.OnAutosave = func(tick uint64) {
		if err := city.Save(); err != nil {
			slog.Error("autosave failed", "tick", tick, "error", err)
		}
	}

	slog.Info("city ready", "run_id", city.Sim.RunID(), "tick", tick, "grid", grid)
	return city, nil
}

// restoreGrid returns the saved map, or nil if there is none.
func (c *City) restoreGrid() (*world.Grid, uint64, error) {
	if c.DB != nil && c.DB.HasSavedGrid() {
		labels, err := c.DB.LoadGrid()
		if err != nil {
			return nil, 0, fmt.Errorf("load saved map: %w", err)
		}
		grid, err := gridFromLabels(labels)
		if err != nil {
			return nil, 0, fmt.Errorf("load saved map: %w", err)
		}
		var tick uint64
		if raw, err := c.DB.GetMeta("last_tick"); err == nil {
			tick, _ = strconv.ParseUint(raw, 10, 64)
		}
		slog.Info("found saved city in database", "tick", tick)
		return grid, tick, nil
	}

	if c.SnapshotPath != "" {
		snap, err := persistence.ReadSnapshot(c.SnapshotPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read snapshot: %w", err)
		}
		grid, err := gridFromLabels(snap.Tiles)
		if err != nil {
			return nil, 0, fmt.Errorf("snapshot %s: %w", c.SnapshotPath, err)
		}
		slog.Info("found saved city in snapshot", "path", c.SnapshotPath, "tick", snap.Tick)
		return grid, snap.Tick, nil
	}
	return nil, 0, nil
}

func gridFromLabels(labels [][]string) (*world.Grid, error) {
	if len(labels) == 0 || len(labels[0]) == 0 {
		return nil, fmt.Errorf("empty map: %w", world.ErrDimensionMismatch)
	}
	grid := world.NewGrid(len(labels), len(labels[0]))
	if err := grid.Replace(labels); err != nil {
		return nil, err
	}
	return grid, nil
}

// Save writes the city to every configured store.
func (c *City) Save() error {
	var errs []error
	if c.DB != nil {
		if err := c.DB.SaveWorldState(c.Sim); err != nil {
			errs = append(errs, err)
		}
	}
	if c.SnapshotPath != "" {
		snap := persistence.NewSnapshot(c.Sim.RunID(), c.Sim.CurrentTick(), c.Sim.GridLabels())
		if err := persistence.WriteSnapshot(c.SnapshotPath, snap); err != nil {
			errs = append(errs, fmt.Errorf("write snapshot: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the database.
func (c *City) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
}
