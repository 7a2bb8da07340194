package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs
// use PostgreSQL, anything else is a SQLite data source.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresStore(ctx, dsn)
	}
	return NewSQLiteStore(dsn)
}

func newRecord(doc Document, id string, createdAt time.Time) *Record {
	fields := make(map[string]string, len(doc.Fields()))
	for k, v := range doc.Fields() {
		fields[k] = v
	}
	var items []LineItem
	if len(doc.LineItems()) > 0 {
		items = append(items, doc.LineItems()...)
	}
	return &Record{
		ID:           id,
		DocumentType: doc.Type(),
		Fields:       fields,
		LineItems:    items,
		CreatedAt:    createdAt,
	}
}

func encodeDocument(doc Document) (fieldsJSON, itemsJSON []byte, err error) {
	fields := doc.Fields()
	if fields == nil {
		fields = map[string]string{}
	}
	if fieldsJSON, err = json.Marshal(fields); err != nil {
		return nil, nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	items := doc.LineItems()
	if items == nil {
		items = []LineItem{}
	}
	if itemsJSON, err = json.Marshal(items); err != nil {
		return nil, nil, fmt.Errorf("failed to encode line items: %w", err)
	}
	return fieldsJSON, itemsJSON, nil
}

func decodeColumns(rec *Record, fieldsJSON, itemsJSON []byte) error {
	if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
		return fmt.Errorf("failed to decode fields of record %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
	if err := json.Unmarshal(itemsJSON, &rec.LineItems); err != nil {
		return fmt.Errorf("failed to decode line items of record %s: %w", rec.ID, err)
	}
	if len(rec.LineItems) == 0 {
		rec.LineItems = nil
	}
	return nil
}
