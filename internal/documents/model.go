package documents

import (
	"time"

	"github.com/garagedesk/garagedesk/internal/pricing"
)

// Kind distinguishes invoices from quotations.
type Kind string

const (
	KindInvoice   Kind = "INVOICE"
	KindQuotation Kind = "QUOTATION"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindQuotation
}

// Prefix is the document number prefix for the kind.
func (k Kind) Prefix() string {
	if k == KindQuotation {
		return "QT"
	}
	return "INV"
}

// Status is the editing state of a document.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
)

// Snapshot holds the rounded totals persisted alongside the lines.
// EstimatedProfit is only kept for quotations.
type Snapshot struct {
	Subtotal        float64  `json:"subtotal"`
	TaxTotal        float64  `json:"tax_total"`
	BankCharge      float64  `json:"bank_charge"`
	Total           float64  `json:"total"`
	GrandTotal      float64  `json:"grand_total"`
	EstimatedProfit *float64 `json:"estimated_profit,omitempty"`
}

// Document is an invoice or quotation with its ordered line list.
type Document struct {
	ID                int64              `json:"id"`
	Kind              Kind               `json:"kind"`
	DocNumber         string             `json:"doc_number"`
	DocDate           time.Time          `json:"doc_date"`
	Status            Status             `json:"status"`
	CustomerID        *int64             `json:"customer_id,omitempty"`
	VehicleID         *int64             `json:"vehicle_id,omitempty"`
	JobID             *int64             `json:"job_id,omitempty"`
	Notes             *string            `json:"notes,omitempty"`
	TaxEnabled        bool               `json:"tax_enabled"`
	BankChargeEnabled bool               `json:"bank_charge_enabled"`
	DefaultTaxRate    float64            `json:"default_tax_rate"`
	Lines             []pricing.LineItem `json:"lines"`
	Snapshot          Snapshot           `json:"snapshot"`
	CreatedBy         int64              `json:"created_by"`
	FinalizedAt       *time.Time         `json:"finalized_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// View is a document together with totals computed from its current lines.
type View struct {
	Document
	Totals pricing.Totals `json:"totals"`
}

// Summary is the list representation; it carries the snapshot only.
type Summary struct {
	ID          int64      `json:"id"`
	Kind        Kind       `json:"kind"`
	DocNumber   string     `json:"doc_number"`
	DocDate     time.Time  `json:"doc_date"`
	Status      Status     `json:"status"`
	CustomerID  *int64     `json:"customer_id,omitempty"`
	VehicleID   *int64     `json:"vehicle_id,omitempty"`
	JobID       *int64     `json:"job_id,omitempty"`
	LineCount   int        `json:"line_count"`
	Snapshot    Snapshot   `json:"snapshot"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FinalizedEvent is published after a document is finalized.
type FinalizedEvent struct {
	DocumentID  int64     `json:"document_id"`
	Kind        Kind      `json:"kind"`
	DocNumber   string    `json:"doc_number"`
	CustomerID  *int64    `json:"customer_id,omitempty"`
	GrandTotal  float64   `json:"grand_total"`
	FinalizedAt time.Time `json:"finalized_at"`
}
