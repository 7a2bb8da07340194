package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Fixed width keeps lexical order equal to chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS invoices (
        id TEXT PRIMARY KEY, -- UUID
        document_type TEXT NOT NULL,
        fields_json TEXT NOT NULL DEFAULT '{}',
        line_items_json TEXT NOT NULL DEFAULT '[]',
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices (created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, doc Document) (*Record, error) {
	fieldsJSON, itemsJSON, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	rec := newRecord(doc, uuid.NewString(), s.now().UTC())

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO invoices (id, document_type, fields_json, line_items_json, created_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, string(rec.DocumentType), string(fieldsJSON), string(itemsJSON), rec.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_type, fields_json, line_items_json, created_at FROM invoices ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec        Record
			docType    string
			fieldsJSON string
			itemsJSON  string
			createdAt  string
		)
		if err := rows.Scan(&rec.ID, &docType, &fieldsJSON, &itemsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		rec.DocumentType = DocumentType(docType)
		if rec.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at of record %s: %w", rec.ID, err)
		}
		if err := decodeColumns(&rec, []byte(fieldsJSON), []byte(itemsJSON)); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}
