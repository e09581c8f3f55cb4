package documents

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/garagedesk/garagedesk/internal/pricing"
)

// LinePatch describes a field-level edit of one line. Quantity and UnitPrice
// go through the pricing engine so a stale override total is dropped.
type LinePatch struct {
	Description   *string
	Quantity      *float64
	UnitPrice     *float64
	UnitCost      *float64
	TaxRate       *float64
	ClearUnitCost bool
	ClearTaxRate  bool
}

// HeaderPatch edits document-level fields.
type HeaderPatch struct {
	DocDate           *time.Time
	CustomerID        *int64
	VehicleID         *int64
	JobID             *int64
	Notes             *string
	TaxEnabled        *bool
	BankChargeEnabled *bool
	DefaultTaxRate    *float64
}

// NewDocument returns an empty draft.
func NewDocument(kind Kind, date time.Time, defaultTaxRate float64) Document {
	return Document{
		Kind:           kind,
		DocDate:        date,
		Status:         StatusDraft,
		DefaultTaxRate: defaultTaxRate,
		Lines:          []pricing.LineItem{},
	}
}

// NewLine returns a fresh line with a generated id.
func NewLine() pricing.LineItem {
	return pricing.LineItem{ID: uuid.NewString(), Quantity: 1}
}

// Editable reports whether lines and header may change.
func (d *Document) Editable() bool {
	return d.Status == StatusDraft
}

// Totals derives the rounded totals of the current lines.
func (d *Document) Totals() pricing.Totals {
	return pricing.ComputeTotals(d.Lines, d.TaxEnabled, d.BankChargeEnabled, d.DefaultTaxRate).Rounded()
}

// View pairs the document with its live totals.
func (d *Document) View() View {
	return View{Document: *d, Totals: d.Totals()}
}

// Refresh recomputes the persisted snapshot from the lines.
func (d *Document) Refresh() {
	t := d.Totals()
	d.Snapshot = Snapshot{
		Subtotal:   t.Subtotal,
		TaxTotal:   t.TaxTotal,
		BankCharge: t.BankCharge,
		Total:      t.Total,
		GrandTotal: t.GrandTotal,
	}
	if d.Kind == KindQuotation {
		profit := t.Profit
		d.Snapshot.EstimatedProfit = &profit
	}
}

// UpdateHeader applies a header edit.
func (d *Document) UpdateHeader(p HeaderPatch) error {
	if !d.Editable() {
		return ErrFinalized
	}
	if p.DocDate != nil {
		d.DocDate = *p.DocDate
	}
	if p.CustomerID != nil {
		d.CustomerID = p.CustomerID
	}
	if p.VehicleID != nil {
		d.VehicleID = p.VehicleID
	}
	if p.JobID != nil {
		d.JobID = p.JobID
	}
	if p.Notes != nil {
		d.Notes = p.Notes
	}
	if p.TaxEnabled != nil {
		d.TaxEnabled = *p.TaxEnabled
	}
	if p.BankChargeEnabled != nil {
		d.BankChargeEnabled = *p.BankChargeEnabled
	}
	if p.DefaultTaxRate != nil {
		d.DefaultTaxRate = *p.DefaultTaxRate
	}
	return nil
}

// AddLine appends a line, generating an id when the line has none.
func (d *Document) AddLine(line pricing.LineItem) (pricing.LineItem, error) {
	if !d.Editable() {
		return pricing.LineItem{}, ErrFinalized
	}
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	d.Lines = append(d.Lines, line)
	return line, nil
}

// RemoveLine drops a line; the order of the others is kept.
func (d *Document) RemoveLine(lineID string) error {
	if !d.Editable() {
		return ErrFinalized
	}
	idx := d.lineIndex(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	d.Lines = append(d.Lines[:idx:idx], d.Lines[idx+1:]...)
	return nil
}

// PatchLine edits a line in place.
func (d *Document) PatchLine(lineID string, p LinePatch) (pricing.LineItem, error) {
	if !d.Editable() {
		return pricing.LineItem{}, ErrFinalized
	}
	idx := d.lineIndex(lineID)
	if idx < 0 {
		return pricing.LineItem{}, ErrLineNotFound
	}
	line := d.Lines[idx]
	if p.Description != nil {
		line.Description = *p.Description
	}
	switch {
	case p.ClearUnitCost:
		line.UnitCost = nil
	case p.UnitCost != nil:
		cost := *p.UnitCost
		line.UnitCost = &cost
	}
	switch {
	case p.ClearTaxRate:
		line.TaxRate = nil
	case p.TaxRate != nil:
		rate := *p.TaxRate
		line.TaxRate = &rate
	}
	line = pricing.ApplyQuantityOrPriceEdit(line, pricing.PriceEdit{Quantity: p.Quantity, UnitPrice: p.UnitPrice})
	d.Lines[idx] = line
	return line, nil
}

// EditLineTotal makes total the authoritative line amount.
func (d *Document) EditLineTotal(lineID string, total float64) (pricing.LineItem, error) {
	if !d.Editable() {
		return pricing.LineItem{}, ErrFinalized
	}
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return pricing.LineItem{}, ErrInvalidTotal
	}
	idx := d.lineIndex(lineID)
	if idx < 0 {
		return pricing.LineItem{}, ErrLineNotFound
	}
	d.Lines[idx] = pricing.ApplyTotalEdit(d.Lines[idx], total)
	return d.Lines[idx], nil
}

// Finalize freezes the document and its snapshot.
func (d *Document) Finalize(now time.Time) error {
	if err := ValidateTransition(d.Status, StatusFinalized); err != nil {
		return err
	}
	if len(d.Lines) == 0 {
		return ErrEmptyDocument
	}
	d.Refresh()
	d.Status = StatusFinalized
	d.FinalizedAt = &now
	return nil
}

// Reopen returns a finalized document to draft.
func (d *Document) Reopen() error {
	if err := ValidateTransition(d.Status, StatusDraft); err != nil {
		return err
	}
	d.Status = StatusDraft
	d.FinalizedAt = nil
	return nil
}

// ValidateTransition checks a status change.
func ValidateTransition(current, target Status) error {
	switch {
	case current == StatusDraft && target == StatusFinalized:
		return nil
	case current == StatusFinalized && target == StatusDraft:
		return nil
	}
	return ErrInvalidStatus
}

func (d *Document) lineIndex(lineID string) int {
	for i := range d.Lines {
		if d.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}
