package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const documentsSchema = `
	CREATE TABLE IF NOT EXISTS record_documents (
		name       TEXT PRIMARY KEY,
		body       JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// NewPostgresDB opens and verifies a database connection
func NewPostgresDB(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// PostgresBackend stores the record document in a row of record_documents.
// Mutate holds a row lock for the whole read-modify-write, so concurrent
// writers from any number of processes are serialized.
type PostgresBackend struct {
	db   *sqlx.DB
	name string
}

// NewPostgresBackend ensures the schema exists and returns a backend for name
func NewPostgresBackend(ctx context.Context, db *sqlx.DB, name string) (*PostgresBackend, error) {
	if _, err := db.ExecContext(ctx, documentsSchema); err != nil {
		return nil, fmt.Errorf("failed to create record_documents table: %w", err)
	}
	return &PostgresBackend{db: db, name: name}, nil
}

// Read returns the stored document or nil when the row does not exist
func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var body []byte
	err := b.db.GetContext(ctx, &body, "SELECT body FROM record_documents WHERE name = $1", b.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", b.name, err)
	}
	return body, nil
}

// Mutate applies fn inside a transaction holding the document row lock
func (b *PostgresBackend) Mutate(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO record_documents (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", b.name)
	if err != nil {
		return fmt.Errorf("failed to ensure document %s: %w", b.name, err)
	}

	var current []byte
	err = tx.GetContext(ctx, &current,
		"SELECT body FROM record_documents WHERE name = $1 FOR UPDATE", b.name)
	if err != nil {
		return fmt.Errorf("failed to lock document %s: %w", b.name, err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE record_documents SET body = $1::jsonb, updated_at = NOW() WHERE name = $2",
		string(next), b.name)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", b.name, err)
	}

	return tx.Commit()
}
