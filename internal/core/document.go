package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/voxform/voxform/internal/store"
	"github.com/voxform/voxform/internal/table"
)

// ValidationError is a client mistake; the API answers it with 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Keys of a create request that are not data fields.
const (
	keyType      = "type"
	keyLineItems = "line_items"
	keyProducts  = "products"
)

// ParseDocument validates a decoded create request of the form
// {"type": ..., <field>: <scalar>, ..., "line_items": [...]} and returns the
// matching document kind.
func ParseDocument(body map[string]json.RawMessage) (store.Document, error) {
	rawType, ok := body[keyType]
	if !ok {
		return nil, invalid("type is required")
	}
	var docType string
	if err := json.Unmarshal(rawType, &docType); err != nil || strings.TrimSpace(docType) == "" {
		return nil, invalid("type must be a non-empty string")
	}

	var items []store.LineItem
	for _, key := range []string{keyLineItems, keyProducts} {
		raw, ok := body[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, invalid("%s must be a list of {name, quantity, price, tax}", key)
		}
		for _, rawItem := range list {
			// Omitted quantity and tax keep the product form defaults.
			item := table.NewLineItem()
			if err := json.Unmarshal(rawItem, &item); err != nil {
				return nil, invalid("%s must be a list of {name, quantity, price, tax}", key)
			}
			items = append(items, item)
		}
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(map[string]string, len(body))
	for _, key := range keys {
		if key == keyType || key == keyLineItems || key == keyProducts {
			continue
		}
		if store.IsReservedColumn(key) {
			return nil, invalid("field %q is reserved", key)
		}
		value, err := scalarString(body[key])
		if err != nil {
			return nil, invalid("field %q: %v", key, err)
		}
		fields[key] = value
	}

	return NewDocument(store.DocumentType(docType), fields, items)
}

// NewDocument builds the document kind for docType. At least one field is
// required and only invoice-like types may carry line items.
func NewDocument(docType store.DocumentType, fields map[string]string, items []store.LineItem) (store.Document, error) {
	if docType == "" {
		return nil, invalid("type is required")
	}
	if len(fields) == 0 {
		return nil, invalid("at least one data field is required")
	}
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, invalid("line item %d needs a name", i)
		}
		if item.Quantity < 0 || item.Price < 0 || item.Tax < 0 {
			return nil, invalid("line item %q has a negative quantity, price or tax", item.Name)
		}
	}

	if docType.InvoiceLike() {
		return store.InvoiceDocument{Kind: docType, Data: fields, Items: items}, nil
	}
	if len(items) > 0 {
		return nil, invalid("line items are only allowed on invoice or quote records")
	}
	return store.ClientDocument{Kind: docType, Data: fields}, nil
}

// scalarString renders a JSON scalar as the string stored for a field.
// Objects and arrays are rejected.
func scalarString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("nested values are not supported")
	}
}
