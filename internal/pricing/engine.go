// Package pricing derives invoice and quotation totals from line items.
//
// Everything here is pure: no I/O, no shared state, and every input (including
// NaN or negative numbers typed halfway through a form) yields a defined result.
package pricing

import "math"

const (
	// DefaultTaxRate is the document-level tax percentage used for lines
	// without their own rate.
	DefaultTaxRate = 15.0
	// BankChargeRate is the payment-processing surcharge applied to the
	// tax-inclusive total.
	BankChargeRate = 0.02
)

// Totals aggregates the derived amounts of a line list.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	TaxTotal   float64 `json:"tax_total"`
	BankCharge float64 `json:"bank_charge"`
	Total      float64 `json:"total"`
	GrandTotal float64 `json:"grand_total"`
	CostTotal  float64 `json:"cost_total"`
	Profit     float64 `json:"profit"`
}

// ComputeTotals sums the lines at full precision. Only the bank charge is
// rounded here; use Rounded for display or persistence.
func ComputeTotals(lines []LineItem, taxEnabled, bankChargeEnabled bool, defaultTaxRate float64) Totals {
	if !finite(defaultTaxRate) {
		defaultTaxRate = 0
	}

	var t Totals
	for _, line := range lines {
		net := LineNet(line)
		t.Subtotal += net
		if taxEnabled {
			t.TaxTotal += net * effectiveRate(line, defaultTaxRate) / 100
		}
		t.CostTotal += LineCost(line)
	}

	t.Total = t.Subtotal + t.TaxTotal
	if bankChargeEnabled {
		t.BankCharge = Round2(t.Total * BankChargeRate)
	}
	t.GrandTotal = t.Total + t.BankCharge
	t.Profit = t.Subtotal - t.CostTotal
	return t
}

// Rounded returns a copy with every amount rounded to cents.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:   Round2(t.Subtotal),
		TaxTotal:   Round2(t.TaxTotal),
		BankCharge: Round2(t.BankCharge),
		Total:      Round2(t.Total),
		GrandTotal: Round2(t.GrandTotal),
		CostTotal:  Round2(t.CostTotal),
		Profit:     Round2(t.Profit),
	}
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(x float64) float64 {
	if !finite(x) {
		return 0
	}
	return math.Round(x*100) / 100
}

func effectiveRate(line LineItem, defaultTaxRate float64) float64 {
	if line.TaxRate != nil && finite(*line.TaxRate) {
		return *line.TaxRate
	}
	return defaultTaxRate
}
