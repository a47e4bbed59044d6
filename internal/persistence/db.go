// Package persistence stores the settlement in SQLite and exports it as
// compressed snapshot files.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/homestead/internal/engine"
)

// ErrNoState means the database holds no state compatible with this build.
var ErrNoState = errors.New("no compatible saved state")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
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
	CREATE TABLE IF NOT EXISTS parcels (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		cells_json TEXT NOT NULL,
		planned_json TEXT NOT NULL,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS resources (
		name TEXT PRIMARY KEY,
		amount INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stages (
		num INTEGER PRIMARY KEY,
		enabled INTEGER NOT NULL
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

type parcelRow struct {
	X       int    `db:"x"`
	Y       int    `db:"y"`
	Cells   string `db:"cells_json"`
	Planned string `db:"planned_json"`
}

type resourceRow struct {
	Name   string `db:"name"`
	Amount int    `db:"amount"`
}

type stageRow struct {
	Num     int `db:"num"`
	Enabled int `db:"enabled"`
}

// SaveWorldState performs a full save of the simulation in one transaction
// and appends the events recorded since the last save.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	snap := Capture(sim)
	events := sim.DrainEvents()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveParcels(tx, snap.Parcels); err != nil {
		return fmt.Errorf("save parcels: %w", err)
	}
	if err := saveResources(tx, snap.Resources); err != nil {
		return fmt.Errorf("save resources: %w", err)
	}
	if err := saveStages(tx, snap.Stages); err != nil {
		return fmt.Errorf("save stages: %w", err)
	}
	if err := insertEvents(tx, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	meta := map[string]string{
		"save_version": strconv.Itoa(SaveVersion),
		"world_id":     snap.Header.WorldID,
		"name":         snap.Header.Name,
		"last_tick":    strconv.FormatUint(snap.Header.Tick, 10),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("world state saved",
		"tick", snap.Header.Tick,
		"parcels", len(snap.Parcels),
		"events", len(events),
	)
	return nil
}

func saveParcels(tx *sqlx.Tx, parcels []ParcelV1) error {
	if _, err := tx.Exec("DELETE FROM parcels"); err != nil {
		return err
	}
	stmt, err := tx.Preparex("INSERT INTO parcels (x, y, cells_json, planned_json) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range parcels {
		cellsJSON, err := json.Marshal(p.Cells)
		if err != nil {
			return err
		}
		planned := p.Planned
		if planned == nil {
			planned = []PlannedV1{}
		}
		plannedJSON, err := json.Marshal(planned)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(p.X, p.Y, string(cellsJSON), string(plannedJSON)); err != nil {
			return fmt.Errorf("insert parcel (%d,%d): %w", p.X, p.Y, err)
		}
	}
	return nil
}

func saveResources(tx *sqlx.Tx, resources map[string]int) error {
	if _, err := tx.Exec("DELETE FROM resources"); err != nil {
		return err
	}
	for name, q := range resources {
		if _, err := tx.Exec("INSERT INTO resources (name, amount) VALUES (?, ?)", name, q); err != nil {
			return fmt.Errorf("insert resource %s: %w", name, err)
		}
	}
	return nil
}

func saveStages(tx *sqlx.Tx, stages map[int]bool) error {
	if _, err := tx.Exec("DELETE FROM stages"); err != nil {
		return err
	}
	for num, on := range stages {
		enabled := 0
		if on {
			enabled = 1
		}
		if _, err := tx.Exec("INSERT INTO stages (num, enabled) VALUES (?, ?)", num, enabled); err != nil {
			return fmt.Errorf("insert stage %d: %w", num, err)
		}
	}
	return nil
}

func insertEvents(tx *sqlx.Tx, events []engine.Event) error {
	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}
	return nil
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

	if err := insertEvents(tx, events); err != nil {
		return err
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

// HasWorldState reports whether a save from this version exists.
func (db *DB) HasWorldState() bool {
	v, err := db.GetMeta("save_version")
	if err != nil || v != strconv.Itoa(SaveVersion) {
		return false
	}
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM parcels"); err != nil {
		return false
	}
	return n > 0
}

// LoadSnapshot reads the stored state into a Snapshot. It returns ErrNoState
// when nothing compatible is stored.
func (db *DB) LoadSnapshot() (Snapshot, error) {
	var snap Snapshot
	if !db.HasWorldState() {
		return snap, ErrNoState
	}

	snap.Header.Version = SaveVersion
	snap.Header.WorldID, _ = db.GetMeta("world_id")
	snap.Header.Name, _ = db.GetMeta("name")
	if tickStr, err := db.GetMeta("last_tick"); err == nil {
		tick, err := strconv.ParseUint(tickStr, 10, 64)
		if err != nil {
			return snap, fmt.Errorf("last_tick %q: %w", tickStr, err)
		}
		snap.Header.Tick = tick
	}

	var rows []parcelRow
	if err := db.conn.Select(&rows, "SELECT x, y, cells_json, planned_json FROM parcels ORDER BY x, y"); err != nil {
		return snap, fmt.Errorf("load parcels: %w", err)
	}
	for _, r := range rows {
		pv := ParcelV1{X: r.X, Y: r.Y}
		if err := json.Unmarshal([]byte(r.Cells), &pv.Cells); err != nil {
			return snap, fmt.Errorf("parcel (%d,%d) cells: %w", r.X, r.Y, err)
		}
		if err := json.Unmarshal([]byte(r.Planned), &pv.Planned); err != nil {
			return snap, fmt.Errorf("parcel (%d,%d) planned: %w", r.X, r.Y, err)
		}
		snap.Parcels = append(snap.Parcels, pv)
	}

	var res []resourceRow
	if err := db.conn.Select(&res, "SELECT name, amount FROM resources"); err != nil {
		return snap, fmt.Errorf("load resources: %w", err)
	}
	snap.Resources = make(map[string]int, len(res))
	for _, r := range res {
		snap.Resources[r.Name] = r.Amount
	}

	var stages []stageRow
	if err := db.conn.Select(&stages, "SELECT num, enabled FROM stages"); err != nil {
		return snap, fmt.Errorf("load stages: %w", err)
	}
	snap.Stages = make(map[int]bool, len(stages))
	for _, s := range stages {
		snap.Stages[s.Num] = s.Enabled != 0
	}

	recent, err := db.RecentEvents(snapshotEvents)
	if err != nil {
		return snap, fmt.Errorf("load events: %w", err)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		snap.Events = append(snap.Events, recent[i])
	}
	return snap, nil
}

// LoadWorldState restores the saved simulation using settings for the
// catalog and rules.
func (db *DB) LoadWorldState(settings engine.Settings) (*engine.Simulation, error) {
	snap, err := db.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	sim, err := snap.Simulation(settings)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	slog.Info("world state loaded",
		"name", snap.Header.Name,
		"tick", snap.Header.Tick,
		"parcels", len(snap.Parcels),
	)
	return sim, nil
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
