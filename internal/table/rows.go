package table

import (
	"encoding/json"
	"strconv"

	"github.com/voxform/voxform/internal/store"
)

// Totals columns appended to an export led by an invoice-like record.
const (
	ColumnSubtotal   = "subtotal"
	ColumnTaxes      = "taxes"
	ColumnGrandTotal = "grand_total"
)

// Row is a record as the table shows it. Invoice-like records carry the
// totals of their line items.
type Row struct {
	store.Record
	Totals *Totals
}

func NewRow(rec store.Record) Row {
	row := Row{Record: rec}
	if rec.DocumentType.InvoiceLike() {
		t := Sum(rec.LineItems)
		row.Totals = &t
	}
	return row
}

func Rows(records []store.Record) []Row {
	out := make([]Row, 0, len(records))
	for _, rec := range records {
		out = append(out, NewRow(rec))
	}
	return out
}

// MarshalJSON adds a "totals" object to the flat record shape.
func (r Row) MarshalJSON() ([]byte, error) {
	data, err := r.Record.MarshalJSON()
	if err != nil || r.Totals == nil {
		return data, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	totals, err := json.Marshal(r.Totals)
	if err != nil {
		return nil, err
	}
	out[store.ColumnTotals] = totals
	return json.Marshal(out)
}

func (r Row) totalValue(column string) string {
	if r.Totals == nil {
		return ""
	}
	var v float64
	switch column {
	case ColumnSubtotal:
		v = r.Totals.Subtotal
	case ColumnTaxes:
		v = r.Totals.Taxes
	case ColumnGrandTotal:
		v = r.Totals.GrandTotal
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
