// Package persistence provides SQLite-based storage for completed and
// in-progress simulation runs.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/growthsim/internal/engine"
)

// DB wraps a SQLite connection for run storage.
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
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		scenario_seed INTEGER NOT NULL,
		baseline_followers INTEGER NOT NULL,
		selections TEXT NOT NULL,
		followers INTEGER NOT NULL,
		views INTEGER NOT NULL,
		engagement INTEGER NOT NULL,
		income INTEGER NOT NULL,
		subscribers INTEGER NOT NULL,
		monthly_cost INTEGER NOT NULL,
		history TEXT NOT NULL,
		completed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord is one archived simulation run. Selections and History hold the
// JSON-encoded choice slots and follower history.
type RunRecord struct {
	ID                string `db:"id" json:"id"`
	CreatedAt         string `db:"created_at" json:"created_at"`
	ScenarioSeed      int64  `db:"scenario_seed" json:"scenario_seed"`
	BaselineFollowers int64  `db:"baseline_followers" json:"baseline_followers"`
	Selections        string `db:"selections" json:"selections"`
	Followers         int64  `db:"followers" json:"followers"`
	Views             int64  `db:"views" json:"views"`
	Engagement        int    `db:"engagement" json:"engagement"`
	Income            int64  `db:"income" json:"income"`
	Subscribers       int64  `db:"subscribers" json:"subscribers"`
	MonthlyCost       int64  `db:"monthly_cost" json:"monthly_cost"`
	History           string `db:"history" json:"history"`
	Completed         bool   `db:"completed" json:"completed"`
}

// NewRunRecord captures the engine's current run under the given ID.
func NewRunRecord(id string, e *engine.Engine) (RunRecord, error) {
	selections, err := json.Marshal(e.Selections())
	if err != nil {
		return RunRecord{}, fmt.Errorf("encode selections: %w", err)
	}
	history, err := json.Marshal(e.HistoryByStep())
	if err != nil {
		return RunRecord{}, fmt.Errorf("encode history: %w", err)
	}

	st := e.Snapshot()
	return RunRecord{
		ID:                id,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339),
		ScenarioSeed:      e.Scenario().Seed,
		BaselineFollowers: e.Baseline().Followers,
		Selections:        string(selections),
		Followers:         st.Followers,
		Views:             st.Views,
		Engagement:        st.Engagement,
		Income:            st.Income,
		Subscribers:       st.Subscribers,
		MonthlyCost:       e.CurrentMonthlyCost(),
		History:           string(history),
		Completed:         e.AllChoicesMade(),
	}, nil
}

// DecodedSelections returns the choice slots stored in the record.
func (r RunRecord) DecodedSelections() ([]int, error) {
	var selections []int
	if err := json.Unmarshal([]byte(r.Selections), &selections); err != nil {
		return nil, fmt.Errorf("decode selections: %w", err)
	}
	return selections, nil
}

// DecodedHistory returns the follower history stored in the record.
func (r RunRecord) DecodedHistory() ([]int64, error) {
	var history []int64
	if err := json.Unmarshal([]byte(r.History), &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

// SaveRun inserts or replaces a run record.
func (db *DB) SaveRun(rec RunRecord) error {
	_, err := db.conn.NamedExec(`
		INSERT OR REPLACE INTO runs (
			id, created_at, scenario_seed, baseline_followers, selections,
			followers, views, engagement, income, subscribers,
			monthly_cost, history, completed
		) VALUES (
			:id, :created_at, :scenario_seed, :baseline_followers, :selections,
			:followers, :views, :engagement, :income, :subscribers,
			:monthly_cost, :history, :completed
		)`, rec)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	slog.Debug("run saved", "id", rec.ID, "completed", rec.Completed)
	return nil
}

// LoadRun fetches one run by ID.
func (db *DB) LoadRun(id string) (RunRecord, error) {
	var rec RunRecord
	if err := db.conn.Get(&rec, "SELECT * FROM runs WHERE id = ?", id); err != nil {
		return RunRecord{}, fmt.Errorf("load run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	var recs []RunRecord
	err := db.conn.Select(&recs,
		"SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return recs, nil
}

// CountRuns returns the total number of stored runs.
func (db *DB) CountRuns() (int, error) {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM runs"); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// SaveMeta stores a key-value pair in simulator metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}
