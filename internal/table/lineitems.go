package table

import (
	"math"

	"github.com/voxform/voxform/internal/store"
)

const DefaultTaxRate = 21.0

// NewLineItem returns a blank product row: one unit at the default tax rate.
func NewLineItem() store.LineItem {
	return store.LineItem{Quantity: 1, Tax: DefaultTaxRate}
}

func LineNet(item store.LineItem) float64 {
	return item.Quantity * item.Price
}

func LineTax(item store.LineItem) float64 {
	return LineNet(item) * item.Tax / 100
}

// LineTotal is quantity × price × (1 + tax/100).
func LineTotal(item store.LineItem) float64 {
	return LineNet(item) + LineTax(item)
}

type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	Taxes      float64 `json:"taxes"`
	GrandTotal float64 `json:"grand_total"`
}

// Sum totals items, rounding each figure to cents.
func Sum(items []store.LineItem) Totals {
	var t Totals
	for _, item := range items {
		t.Subtotal += LineNet(item)
		t.Taxes += LineTax(item)
	}
	t.Subtotal = roundCents(t.Subtotal)
	t.Taxes = roundCents(t.Taxes)
	t.GrandTotal = roundCents(t.Subtotal + t.Taxes)
	return t
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
