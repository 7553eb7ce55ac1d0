package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/agentic-research/hl7find/api"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const matchesSchema = `
CREATE TABLE IF NOT EXISTS matches (
	message_id TEXT NOT NULL,
	query TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	location TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT,
	PRIMARY KEY (message_id, query, ordinal)
) WITHOUT ROWID;`

var errNoTx = errors.New("match writer has no open transaction")

// MatchWriter persists match records in batched transactions.
type MatchWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewMatchWriter opens (or creates) the SQLite database at dbPath.
func NewMatchWriter(dbPath string, logger *zap.Logger) (*MatchWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(matchesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &MatchWriter{db: db, batchSize: 5000, logger: logger}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *MatchWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO matches (message_id, query, ordinal, location, kind, name, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = w.tx.Rollback()
		w.tx = nil
	}
	return err
}

// commitTx commits the open transaction, if any, and forgets it.
func (w *MatchWriter) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	return tx.Commit()
}

// Write stores rec. Records with the same message, query and ordinal replace each other.
func (w *MatchWriter) Write(rec api.MatchRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stmt == nil {
		return errNoTx
	}
	if _, err := w.stmt.Exec(rec.MessageID, rec.Query, rec.Ordinal, rec.Location, rec.Kind, rec.Name, rec.Value); err != nil {
		return fmt.Errorf("insert match %s%s: %w", rec.MessageID, rec.Location, err)
	}
	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		w.logger.Debug("match batch committed", zap.Int("records", w.count))
		w.count = 0
	}
	return nil
}

// Close commits pending records and closes the database.
func (w *MatchWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_matches_name ON matches(name)`); err != nil {
		w.logger.Warn("index creation failed", zap.Error(err))
	}
	return w.db.Close()
}

// LoadMatches reads stored records ordered by message, query and ordinal.
// An empty messageID loads every record.
func LoadMatches(dbPath, messageID string) ([]api.MatchRecord, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	q := "SELECT message_id, query, ordinal, location, kind, name, value FROM matches"
	var args []any
	if messageID != "" {
		q += " WHERE message_id = ?"
		args = append(args, messageID)
	}
	q += " ORDER BY message_id, query, ordinal"

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.MatchRecord
	for rows.Next() {
		var rec api.MatchRecord
		var value sql.NullString
		if err := rows.Scan(&rec.MessageID, &rec.Query, &rec.Ordinal, &rec.Location, &rec.Kind, &rec.Name, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Value = value.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
