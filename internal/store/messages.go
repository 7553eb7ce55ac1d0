package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	raw TEXT NOT NULL
);`

// RawMessage is an undecoded ER7 message and its identifier.
type RawMessage struct {
	ID  string
	Raw string
}

// StreamMessages iterates over the messages table of a SQLite database,
// calling fn for each row in id order. Only one message is held at a time.
func StreamMessages(dbPath string, fn func(id, raw string) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT id, raw FROM messages ORDER BY id")
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(id, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ImportMessages inserts or replaces msgs in a single transaction, creating
// the messages table when needed.
func ImportMessages(dbPath string, msgs []RawMessage) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(messagesSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO messages (id, raw) VALUES (?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range msgs {
		if _, err := stmt.Exec(m.ID, m.Raw); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}
