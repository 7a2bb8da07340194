package table

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxform/voxform/internal/store"
)

func sampleRecords() []store.Record {
	created := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	return []store.Record{
		{
			ID:           "r1",
			DocumentType: store.DocumentClient,
			Fields:       map[string]string{"name": `Ana "La Jefa" García`, "nif": "X123"},
			CreatedAt:    created,
		},
		{
			ID:           "r2",
			DocumentType: store.DocumentInvoice,
			Fields:       map[string]string{"invoice_number": "F-9"},
			LineItems:    []store.LineItem{{Name: "Widget", Quantity: 2, Price: 5, Tax: 21}},
			CreatedAt:    created,
		},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"id","document_type","created_at","name","nif"`, lines[0])
	assert.Equal(t, `"r1","client","2025-02-03T04:05:06Z","Ana ""La Jefa"" García","X123"`, lines[1])
	assert.Equal(t, `"r2","invoice","2025-02-03T04:05:06Z","",""`, lines[2])
}

func TestExportCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestFilter(t *testing.T) {
	records := sampleRecords()

	assert.Len(t, Filter(records, ""), 2)
	assert.Len(t, Filter(records, "   "), 2)

	got := Filter(records, "garcía")
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	got = Filter(records, "INVOICE")
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)

	assert.Empty(t, Filter(records, "nothing here"))
}

func TestLineItemArithmetic(t *testing.T) {
	item := store.LineItem{Name: "Widget", Quantity: 3, Price: 10, Tax: 21}
	assert.InDelta(t, 36.3, LineTotal(item), 1e-9)

	items := []store.LineItem{
		item,
		{Name: "Service", Quantity: 1, Price: 99.99, Tax: 0},
	}
	assert.Equal(t, Totals{Subtotal: 129.99, Taxes: 6.3, GrandTotal: 136.29}, Sum(items))
	assert.Equal(t, Totals{}, Sum(nil))
}

func TestNewLineItemDefaults(t *testing.T) {
	item := NewLineItem()
	assert.Equal(t, 1.0, item.Quantity)
	assert.Equal(t, DefaultTaxRate, item.Tax)
}

func TestRowsCarryInvoiceTotals(t *testing.T) {
	rows := Rows(sampleRecords())
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Totals)
	require.NotNil(t, rows[1].Totals)
	assert.Equal(t, Totals{Subtotal: 10, Taxes: 2.1, GrandTotal: 12.1}, *rows[1].Totals)

	data, err := json.Marshal(rows)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded[0], "totals")
	assert.Equal(t, map[string]any{"subtotal": 10.0, "taxes": 2.1, "grand_total": 12.1}, decoded[1]["totals"])
	assert.Equal(t, "F-9", decoded[1]["invoice_number"])
}

func TestExportCSVInvoiceTotals(t *testing.T) {
	records := sampleRecords()
	records[0], records[1] = records[1], records[0]

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, records))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"id","document_type","created_at","invoice_number","line_items","subtotal","taxes","grand_total"`, lines[0])
	assert.True(t, strings.HasSuffix(lines[1], `"10.00","2.10","12.10"`), lines[1])
	assert.Equal(t, `"r1","client","2025-02-03T04:05:06Z","","","","",""`, lines[2])
}
