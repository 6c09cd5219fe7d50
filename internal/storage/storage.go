// Package storage provides the SQLite archive of collected messages, price bars and
// pipeline runs.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/liqstudy/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/liqstudy/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "liqstudy", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			chat_id     TEXT NOT NULL,
			id          INTEGER NOT NULL,
			timestamp   INTEGER NOT NULL,
			text        TEXT NOT NULL,
			PRIMARY KEY (chat_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS price_bars (
			symbol      TEXT NOT NULL,
			interval    TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			open        REAL NOT NULL,
			high        REAL NOT NULL,
			low         REAL NOT NULL,
			close       REAL NOT NULL,
			volume      REAL NOT NULL,
			PRIMARY KEY (symbol, interval, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			stage       TEXT NOT NULL,
			interval    TEXT NOT NULL,
			status      TEXT NOT NULL,
			row_count   INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			started_at  INTEGER NOT NULL,
			finished_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(chat_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddMessages archives msgs for chatID. Messages already archived are left untouched.
// It returns the number of newly stored messages.
func (s *Storage) AddMessages(chatID string, msgs []models.RawMessage) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO messages (chat_id, id, timestamp, text) VALUES (?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, m := range msgs {
		res, err := stmt.Exec(chatID, m.ID, m.Timestamp.UnixNano(), m.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message %d: %w", m.ID, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return added, nil
}

// Messages returns the archived messages of chatID with start <= timestamp <= end,
// ordered by timestamp then id.
func (s *Storage) Messages(chatID string, start, end time.Time) ([]models.RawMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, text FROM messages
		WHERE chat_id = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp, id`, chatID, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.RawMessage{}
	for rows.Next() {
		var m models.RawMessage
		var tsNano int64
		if err := rows.Scan(&m.ID, &tsNano, &m.Text); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp = time.Unix(0, tsNano).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AddPriceBars archives bars for symbol at interval. A bar whose timestamp is already
// archived is left untouched. It returns the number of newly stored bars.
func (s *Storage) AddPriceBars(symbol string, interval models.Interval, bars []models.PriceBar) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO price_bars
			(symbol, interval, timestamp, open, high, low, close, volume)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for i := range bars {
		b := &bars[i]
		if err := b.Validate(); err != nil {
			return 0, fmt.Errorf("invalid price bar: %w", err)
		}
		res, err := stmt.Exec(symbol, string(interval), b.Timestamp.UnixNano(),
			b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return 0, fmt.Errorf("failed to insert price bar: %w", err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit price bars: %w", err)
	}
	return added, nil
}

// PriceBars returns the archived bars of symbol at interval with
// start <= timestamp <= end, in ascending timestamp order.
func (s *Storage) PriceBars(symbol string, interval models.Interval, start, end time.Time) ([]models.PriceBar, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, open, high, low, close, volume FROM price_bars
		WHERE symbol = ? AND interval = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp`, symbol, string(interval), start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	bars := []models.PriceBar{}
	for rows.Next() {
		var b models.PriceBar
		var tsNano int64
		if err := rows.Scan(&tsNano, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		b.Timestamp = time.Unix(0, tsNano).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// StartRun records a running execution of stage and returns it.
func (s *Storage) StartRun(stage string, interval models.Interval) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		Interval:  string(interval),
		Status:    models.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, stage, interval, status, started_at)
		VALUES (?,?,?,?,?)`,
		run.ID, run.Stage, run.Interval, run.Status, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks run as succeeded, or failed when runErr is non-nil, and updates
// run in place.
func (s *Storage) FinishRun(run *models.Run, rows int, runErr error) error {
	run.Status = models.RunSucceeded
	run.Error = ""
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}
	run.Rows = rows
	run.FinishedAt = time.Now().UTC()

	res, err := s.db.Exec(`
		UPDATE runs SET status=?, row_count=?, error=?, finished_at=? WHERE id=?`,
		run.Status, run.Rows, run.Error, run.FinishedAt.UnixNano(), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// RecentRuns returns at most limit runs, newest first.
func (s *Storage) RecentRuns(limit int) ([]models.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, stage, interval, status, row_count, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		var r models.Run
		var startedNano int64
		var finishedNano sql.NullInt64
		err := rows.Scan(&r.ID, &r.Stage, &r.Interval, &r.Status, &r.Rows, &r.Error,
			&startedNano, &finishedNano)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedNano).UTC()
		if finishedNano.Valid {
			r.FinishedAt = time.Unix(0, finishedNano.Int64).UTC()
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
