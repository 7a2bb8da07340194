package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

type DocumentType string

const (
	DocumentInvoice DocumentType = "invoice"
	DocumentQuote   DocumentType = "quote"
	DocumentClient  DocumentType = "client"
	DocumentContact DocumentType = "contact"
)

// InvoiceLike reports whether records of this type may carry line items.
func (t DocumentType) InvoiceLike() bool {
	return t == DocumentInvoice || t == DocumentQuote
}

type LineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Tax      float64 `json:"tax"`
}

// Document is a validated record ready for insertion. Only InvoiceDocument
// can hold line items.
type Document interface {
	Type() DocumentType
	Fields() map[string]string
	LineItems() []LineItem
	document()
}

type ClientDocument struct {
	Kind DocumentType
	Data map[string]string
}

func (d ClientDocument) Type() DocumentType        { return d.Kind }
func (d ClientDocument) Fields() map[string]string { return d.Data }
func (d ClientDocument) LineItems() []LineItem     { return nil }
func (ClientDocument) document()                   {}

type InvoiceDocument struct {
	Kind  DocumentType
	Data  map[string]string
	Items []LineItem
}

func (d InvoiceDocument) Type() DocumentType        { return d.Kind }
func (d InvoiceDocument) Fields() map[string]string { return d.Data }
func (d InvoiceDocument) LineItems() []LineItem     { return d.Items }
func (InvoiceDocument) document()                   {}

// Record is a persisted row of the invoices table.
type Record struct {
	ID           string
	DocumentType DocumentType
	Fields       map[string]string
	LineItems    []LineItem
	CreatedAt    time.Time
}

// Column names that data fields may not shadow.
const (
	ColumnID           = "id"
	ColumnDocumentType = "document_type"
	ColumnCreatedAt    = "created_at"
	ColumnLineItems    = "line_items"
	ColumnTotals       = "totals"
)

func IsReservedColumn(key string) bool {
	switch key {
	case ColumnID, ColumnDocumentType, ColumnCreatedAt, ColumnLineItems, ColumnTotals:
		return true
	}
	return false
}

// Columns lists the record's keys in display order: the fixed columns first,
// then data fields sorted by name, then line items when present.
func (r Record) Columns() []string {
	cols := []string{ColumnID, ColumnDocumentType, ColumnCreatedAt}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cols = append(cols, keys...)
	if len(r.LineItems) > 0 {
		cols = append(cols, ColumnLineItems)
	}
	return cols
}

// Value returns the string form of a column. Unknown columns yield "".
func (r Record) Value(column string) string {
	switch column {
	case ColumnID:
		return r.ID
	case ColumnDocumentType:
		return string(r.DocumentType)
	case ColumnCreatedAt:
		return r.CreatedAt.UTC().Format(time.RFC3339)
	case ColumnLineItems:
		if len(r.LineItems) == 0 {
			return ""
		}
		data, err := json.Marshal(r.LineItems)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return r.Fields[column]
}

// MarshalJSON flattens data fields next to the fixed columns.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[ColumnID] = r.ID
	out[ColumnDocumentType] = r.DocumentType
	out[ColumnCreatedAt] = r.CreatedAt.UTC()
	if len(r.LineItems) > 0 {
		out[ColumnLineItems] = r.LineItems
	}
	return json.Marshal(out)
}

// Store persists records in the single invoices table.
type Store interface {
	Create(ctx context.Context, doc Document) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	// Delete reports whether a row was removed. A missing id is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
