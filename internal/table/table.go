// Package table holds the record listing helpers: search, CSV export and
// line-item arithmetic.
package table

import (
	"bufio"
	"io"
	"strings"

	"github.com/voxform/voxform/internal/store"
)

// Filter keeps records where term occurs, ignoring case, in the id, the
// document type or any field value. An empty term keeps everything.
func Filter(records []store.Record, term string) []store.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}
	out := make([]store.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, term) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec store.Record, term string) bool {
	if strings.Contains(strings.ToLower(rec.ID), term) ||
		strings.Contains(strings.ToLower(string(rec.DocumentType)), term) {
		return true
	}
	for _, v := range rec.Fields {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

// ExportCSV writes a header of the first record's columns and one line per
// record. Every value is quoted. When the first record is invoice-like the
// line-item totals follow as extra columns. Nothing is written for an empty
// slice.
func ExportCSV(w io.Writer, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	rows := Rows(records)
	columns := rows[0].Columns()
	withTotals := rows[0].Totals != nil

	header := columns
	if withTotals {
		header = append(append([]string(nil), columns...), ColumnSubtotal, ColumnTaxes, ColumnGrandTotal)
	}
	writeLine(bw, header)

	values := make([]string, len(header))
	for _, row := range rows {
		for i, col := range columns {
			values[i] = row.Value(col)
		}
		if withTotals {
			for i, col := range header[len(columns):] {
				values[len(columns)+i] = row.totalValue(col)
			}
		}
		writeLine(bw, values)
	}
	return bw.Flush()
}

func writeLine(w *bufio.Writer, values []string) {
	for i, v := range values {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(v, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
