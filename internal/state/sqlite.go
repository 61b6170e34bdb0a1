package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS sync_state (
	id         TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteBackend keeps the document as one row of a local SQLite database.
type SQLiteBackend struct {
	db *sql.DB
	id string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path, id string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sync_state: %w", err)
	}

	if id == "" {
		id = DefaultDocumentID
	}
	return &SQLiteBackend{db: db, id: id}, nil
}

func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var data string
	err := b.db.QueryRowContext(ctx, `SELECT document FROM sync_state WHERE id = ?`, b.id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (b *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, document, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE
		SET document = excluded.document, updated_at = excluded.updated_at`,
		b.id, string(data),
	)
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
