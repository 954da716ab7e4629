// Package persistence archives the metrics history of simulation runs in
// SQLite. It stores aggregate snapshots only; a model is never restored
// from the archive.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/treesim/internal/engine"
	"github.com/talgya/treesim/internal/scenario"
)

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

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
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		source TEXT NOT NULL,
		seed INTEGER NOT NULL,
		trees INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		params_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		healthy INTEGER NOT NULL,
		stressed INTEGER NOT NULL,
		critical INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		dead_total INTEGER NOT NULL,
		planted INTEGER NOT NULL,
		precipitation REAL NOT NULL,
		temperature REAL NOT NULL,
		avg_health REAL NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE TABLE IF NOT EXISTS species_counts (
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		label TEXT NOT NULL,
		alive INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		new_planting INTEGER NOT NULL,
		PRIMARY KEY (run_id, year, label)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, year);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one archived simulation session.
type Run struct {
	ID        string `db:"id" json:"id"`
	CreatedAt string `db:"created_at" json:"created_at"`
	Source    string `db:"source" json:"source"`
	Seed      int64  `db:"seed" json:"seed"`
	Trees     int    `db:"trees" json:"trees"`
	Skipped   int    `db:"skipped" json:"skipped"`
	Params    string `db:"params_json" json:"params"`
}

// NewRun describes a freshly constructed model.
func NewRun(m *engine.CityModel) Run {
	params := m.Params()
	paramsJSON, _ := json.Marshal(params)
	return Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Source:    m.Report.Source,
		Seed:      m.Seed(),
		Trees:     m.Population().Len(),
		Skipped:   m.Report.SkippedTotal(),
		Params:    string(paramsJSON),
	}
}

// DecodeParams parses the stored scenario parameters.
func (r Run) DecodeParams() (scenario.Params, error) {
	var p scenario.Params
	err := json.Unmarshal([]byte(r.Params), &p)
	return p, err
}

// SaveRun records a run header.
func (db *DB) SaveRun(r Run) error {
	_, err := db.conn.NamedExec(`INSERT INTO runs
		(id, created_at, source, seed, trees, skipped, params_json)
		VALUES (:id, :created_at, :source, :seed, :trees, :skipped, :params_json)`, r)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// SaveSnapshots writes snapshots for a run, replacing existing years.
func (db *DB) SaveSnapshots(runID string, snaps []engine.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range snaps {
		_, err := tx.Exec(`INSERT OR REPLACE INTO snapshots
			(run_id, year, alive, healthy, stressed, critical, dead, dead_total,
			 planted, precipitation, temperature, avg_health)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Year, s.Alive, s.Healthy, s.Stressed, s.Critical, s.Dead, s.DeadTotal,
			s.Planted, s.Precipitation, s.Temperature, s.AvgHealth,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %d: %w", s.Year, err)
		}

		if _, err := tx.Exec("DELETE FROM species_counts WHERE run_id = ? AND year = ?", runID, s.Year); err != nil {
			return err
		}
		for _, c := range s.Species {
			_, err := tx.Exec(`INSERT INTO species_counts
				(run_id, year, label, alive, dead, new_planting) VALUES (?, ?, ?, ?, ?, ?)`,
				runID, s.Year, c.Label, c.Alive, c.Dead, c.NewPlanting,
			)
			if err != nil {
				return fmt.Errorf("insert species %q for %d: %w", c.Label, s.Year, err)
			}
		}
	}

	return tx.Commit()
}

// SaveHistory archives a model's complete history under a new run.
func (db *DB) SaveHistory(m *engine.CityModel) (Run, error) {
	run := NewRun(m)
	slog.Info("archiving run", "run", run.ID, "years", m.History().Len())

	if err := db.SaveRun(run); err != nil {
		return run, err
	}
	if err := db.SaveSnapshots(run.ID, m.History().All()); err != nil {
		return run, fmt.Errorf("save snapshots: %w", err)
	}
	return run, nil
}

// StatsRow is one archived year of a run.
type StatsRow struct {
	Year          int     `db:"year" json:"year"`
	Alive         int     `db:"alive" json:"alive"`
	Healthy       int     `db:"healthy" json:"healthy"`
	Stressed      int     `db:"stressed" json:"stressed"`
	Critical      int     `db:"critical" json:"critical"`
	Dead          int     `db:"dead" json:"dead"`
	DeadTotal     int     `db:"dead_total" json:"dead_total"`
	Planted       int     `db:"planted" json:"planted"`
	Precipitation float64 `db:"precipitation" json:"precipitation"`
	Temperature   float64 `db:"temperature" json:"temperature"`
	AvgHealth     float64 `db:"avg_health" json:"avg_health"`
}

// LoadStatsHistory returns archived years of a run in [from, to], oldest first.
func (db *DB) LoadStatsHistory(runID string, from, to, limit int) ([]StatsRow, error) {
	var rows []StatsRow
	err := db.conn.Select(&rows, `SELECT year, alive, healthy, stressed, critical, dead,
		dead_total, planted, precipitation, temperature, avg_health
		FROM snapshots WHERE run_id = ? AND year >= ? AND year <= ?
		ORDER BY year LIMIT ?`, runID, from, to, limit)
	return rows, err
}

// LoadSpecies returns the archived breakdown of one year.
func (db *DB) LoadSpecies(runID string, year int) ([]engine.SpeciesCounts, error) {
	var rows []engine.SpeciesCounts
	err := db.conn.Select(&rows, `SELECT label, alive, dead, new_planting AS newplanting
		FROM species_counts WHERE run_id = ? AND year = ? ORDER BY label`, runID, year)
	return rows, err
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	return runs, err
}

// GetRun loads one run header.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	return r, err
}
