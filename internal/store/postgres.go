package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema is applied on startup by NewPostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS invoices (
    id            TEXT PRIMARY KEY,
    document_type TEXT NOT NULL,
    fields        JSONB NOT NULL DEFAULT '{}',
    line_items    JSONB NOT NULL DEFAULT '[]',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices (created_at DESC);
`

// DB is satisfied by both *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects a pool to dsn and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithDB wraps an existing connection. The caller owns it and
// is responsible for running Migrate.
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (s *PostgresStore) Create(ctx context.Context, doc Document) (*Record, error) {
	fieldsJSON, itemsJSON, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	rec := newRecord(doc, uuid.NewString(), time.Time{})

	const query = `
		INSERT INTO invoices (id, document_type, fields, line_items)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	if err := s.db.QueryRow(ctx, query, rec.ID, string(rec.DocumentType), fieldsJSON, itemsJSON).Scan(&rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, document_type, fields, line_items, created_at FROM invoices ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec        Record
			docType    string
			fieldsJSON []byte
			itemsJSON  []byte
		)
		if err := rows.Scan(&rec.ID, &docType, &fieldsJSON, &itemsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		rec.DocumentType = DocumentType(docType)
		if err := decodeColumns(&rec, fieldsJSON, itemsJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM invoices WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
