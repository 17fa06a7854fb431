// Package persistence provides SQLite-based city storage and compressed
// snapshot files.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/tilecity/internal/engine"
	"github.com/talgya/tilecity/internal/world"
)

// ErrNoSavedGrid is returned when the database holds no map yet.
var ErrNoSavedGrid = errors.New("no saved grid")

// DB wraps a SQLite connection for city persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tiles (
		row_idx INTEGER NOT NULL,
		col_idx INTEGER NOT NULL,
		kind    TEXT NOT NULL,
		PRIMARY KEY (row_idx, col_idx)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type tileRow struct {
	Row  int    `db:"row_idx"`
	Col  int    `db:"col_idx"`
	Kind string `db:"kind"`
}

// SaveGrid writes the map to the database (full replace). Empty tiles
// are implied by the stored dimensions.
func (db *DB) SaveGrid(g *world.Grid) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tiles"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO tiles (row_idx, col_idx, kind) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	rows, cols := g.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			kind := g.Kind(world.Pos(r, c))
			if kind == world.TileEmpty {
				continue
			}
			if _, err := stmt.Exec(r, c, kind.String()); err != nil {
				return fmt.Errorf("insert tile (%d,%d): %w", r, c, err)
			}
		}
	}

	for key, value := range map[string]string{
		"rows": strconv.Itoa(rows),
		"cols": strconv.Itoa(cols),
	} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadGrid reads the saved map as tile labels. It returns ErrNoSavedGrid
// if nothing was saved.
func (db *DB) LoadGrid() ([][]string, error) {
	rows, err := db.metaInt("rows")
	if err != nil {
		return nil, err
	}
	cols, err := db.metaInt("cols")
	if err != nil {
		return nil, err
	}

	labels := world.NewGrid(rows, cols).Labels()
	var tiles []tileRow
	if err := db.conn.Select(&tiles, "SELECT row_idx, col_idx, kind FROM tiles"); err != nil {
		return nil, fmt.Errorf("select tiles: %w", err)
	}
	for _, t := range tiles {
		if t.Row < 0 || t.Row >= rows || t.Col < 0 || t.Col >= cols {
			return nil, fmt.Errorf("tile (%d,%d) outside %dx%d map: %w", t.Row, t.Col, rows, cols, world.ErrOutOfBounds)
		}
		labels[t.Row][t.Col] = t.Kind
	}
	return labels, nil
}

// HasSavedGrid reports whether a map has been saved.
func (db *DB) HasSavedGrid() bool {
	_, err := db.metaInt("rows")
	return err == nil
}

func (db *DB) metaInt(key string) (int, error) {
	raw, err := db.GetMeta(key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSavedGrid
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, raw, err)
	}
	return n, nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState saves the map, the events recorded since the last save
// and the tick counter. Sims, vehicles and claims are not stored.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	grid := sim.GridCopy()
	events := sim.DrainEvents()
	tick := sim.CurrentTick()
	slog.Info("saving city state", "tick", tick, "events", len(events))

	if err := db.SaveGrid(grid); err != nil {
		return fmt.Errorf("save grid: %w", err)
	}
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("run_id", sim.RunID()); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("city state saved")
	return nil
}

// LoadWorldState replaces sim's map with the saved one and restores the
// tick counter, which it returns.
func (db *DB) LoadWorldState(sim *engine.Simulation) (uint64, error) {
	labels, err := db.LoadGrid()
	if err != nil {
		return 0, err
	}
	if err := sim.ReplaceGrid(labels); err != nil {
		return 0, fmt.Errorf("load grid: %w", err)
	}

	var tick uint64
	if raw, err := db.GetMeta("last_tick"); err == nil {
		tick, _ = strconv.ParseUint(raw, 10, 64)
	}
	sim.SetLastTick(tick)
	slog.Info("city state loaded", "tick", tick)
	return tick, nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
