package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the reload audit trail to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so `reload status` can read while a pass writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reload_runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			run_id        TEXT NOT NULL,
			account       TEXT NOT NULL,
			drift         TEXT,
			eligible      INTEGER,
			reason        TEXT,
			burst         INTEGER,
			succeeded     INTEGER,
			failed        INTEGER,
			aborted       INTEGER,
			shortfall     INTEGER,
			rollover      INTEGER,
			completed     INTEGER,
			next_eligible INTEGER,
			error         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_account_ts ON reload_runs(account, timestamp)`,

		`CREATE TABLE IF NOT EXISTS reload_purchases (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			run_id     TEXT NOT NULL,
			account    TEXT NOT NULL,
			amount     REAL,
			succeeded  INTEGER,
			completed  INTEGER,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_account_ts ON reload_purchases(account, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next int64
	if !evt.NextEligible.IsZero() {
		next = evt.NextEligible.Unix()
	}
	_, err := r.db.Exec(`INSERT INTO reload_runs
		(timestamp, run_id, account, drift, eligible, reason, burst, succeeded, failed,
		 aborted, shortfall, rollover, completed, next_eligible, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.RunID, evt.Account, evt.Drift, evt.Eligible, evt.Reason,
		evt.Burst, evt.Succeeded, evt.Failed, evt.Aborted, evt.Shortfall, evt.Rollover,
		evt.Completed, next, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordPurchase(evt *PurchaseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO reload_purchases
		(timestamp, run_id, account, amount, succeeded, completed, error)
		VALUES (?,?,?,?,?,?,?)`,
		ts.Unix(), evt.RunID, evt.Account, evt.Amount, evt.Succeeded, evt.Completed, evt.Error,
	)
	return err
}

// CountPurchases returns the number of recorded attempts for account.
func (r *SQLiteRecorder) CountPurchases(account string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM reload_purchases WHERE account = ?`, account).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
