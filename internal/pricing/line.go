package pricing

import "math"

// LineItem is one billable row of an invoice or quotation.
type LineItem struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	Quantity      float64  `json:"quantity"`
	UnitPrice     float64  `json:"unit_price"`
	UnitCost      *float64 `json:"unit_cost,omitempty"`
	TaxRate       *float64 `json:"tax_rate,omitempty"`
	OverrideTotal *float64 `json:"override_total,omitempty"`
	ItemID        *string  `json:"item_id,omitempty"`
}

// PriceEdit carries a direct edit of a line's quantity and/or unit price.
type PriceEdit struct {
	Quantity  *float64
	UnitPrice *float64
}

// Empty reports whether the edit touches neither factor.
func (e PriceEdit) Empty() bool {
	return e.Quantity == nil && e.UnitPrice == nil
}

// LineNet returns the tax-exclusive amount a line contributes to the subtotal.
func LineNet(line LineItem) float64 {
	if line.OverrideTotal != nil && finite(*line.OverrideTotal) {
		return *line.OverrideTotal
	}
	return nonNegative(line.Quantity) * nonNegative(line.UnitPrice)
}

// LineCost returns the cost basis of a line. The override total never
// affects cost.
func LineCost(line LineItem) float64 {
	if line.UnitCost == nil || !finite(*line.UnitCost) {
		return 0
	}
	return *line.UnitCost * nonNegative(line.Quantity)
}

// ApplyQuantityOrPriceEdit sets the edited factors and drops any override
// total, which is stale once quantity or unit price change.
func ApplyQuantityOrPriceEdit(line LineItem, edit PriceEdit) LineItem {
	if edit.Empty() {
		return line
	}
	if edit.Quantity != nil {
		line.Quantity = *edit.Quantity
	}
	if edit.UnitPrice != nil {
		line.UnitPrice = *edit.UnitPrice
	}
	line.OverrideTotal = nil
	return line
}

// ApplyTotalEdit records newTotal as the authoritative line total and
// back-solves the unit price when quantity is positive. With a zero
// quantity only the override is stored and the unit price is left alone.
func ApplyTotalEdit(line LineItem, newTotal float64) LineItem {
	total := newTotal
	line.OverrideTotal = &total
	if qty := nonNegative(line.Quantity); qty > 0 {
		line.UnitPrice = newTotal / qty
	}
	return line
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nonNegative(v float64) float64 {
	if !finite(v) || v < 0 {
		return 0
	}
	return v
}
