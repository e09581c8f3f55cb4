package documents

import "time"

// DateLayout is the wire format of document dates.
const DateLayout = "2006-01-02"

// LineInput describes a line supplied on create or preview.
type LineInput struct {
	Description   string   `json:"description" validate:"max=500"`
	Quantity      float64  `json:"quantity" validate:"gte=0"`
	UnitPrice     float64  `json:"unit_price" validate:"gte=0"`
	UnitCost      *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	TaxRate       *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	LineTotal     *float64 `json:"line_total,omitempty" validate:"omitempty,gte=0"`
	CatalogItemID *int64   `json:"catalog_item_id,omitempty" validate:"omitempty,gt=0"`
}

// CreateDocumentRequest opens a new draft.
type CreateDocumentRequest struct {
	Kind              Kind        `json:"kind" validate:"required,oneof=INVOICE QUOTATION"`
	DocDate           string      `json:"doc_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CustomerID        *int64      `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	VehicleID         *int64      `json:"vehicle_id,omitempty" validate:"omitempty,gt=0"`
	JobID             *int64      `json:"job_id,omitempty" validate:"omitempty,gt=0"`
	Notes             *string     `json:"notes,omitempty" validate:"omitempty,max=2000"`
	TaxEnabled        bool        `json:"tax_enabled"`
	BankChargeEnabled bool        `json:"bank_charge_enabled"`
	DefaultTaxRate    *float64    `json:"default_tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Lines             []LineInput `json:"lines,omitempty" validate:"omitempty,max=500,dive"`
}

// UpdateDocumentRequest edits header fields of a draft.
type UpdateDocumentRequest struct {
	DocDate           *string  `json:"doc_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CustomerID        *int64   `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	VehicleID         *int64   `json:"vehicle_id,omitempty" validate:"omitempty,gt=0"`
	JobID             *int64   `json:"job_id,omitempty" validate:"omitempty,gt=0"`
	Notes             *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
	TaxEnabled        *bool    `json:"tax_enabled,omitempty"`
	BankChargeEnabled *bool    `json:"bank_charge_enabled,omitempty"`
	DefaultTaxRate    *float64 `json:"default_tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// AddLineRequest appends a line. With a catalog item the line is populated
// from it; with an explicit line that line is used; otherwise the new line
// is empty (quantity 1, unit price 0).
type AddLineRequest struct {
	CatalogItemID *int64     `json:"catalog_item_id,omitempty" validate:"omitempty,gt=0"`
	Quantity      *float64   `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Line          *LineInput `json:"line,omitempty"`
}

// PatchLineRequest edits fields of one line. LineTotal may not be combined
// with Quantity or UnitPrice.
type PatchLineRequest struct {
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	Quantity      *float64 `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	UnitPrice     *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	UnitCost      *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	TaxRate       *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	ClearUnitCost bool     `json:"clear_unit_cost,omitempty"`
	ClearTaxRate  bool     `json:"clear_tax_rate,omitempty"`
	LineTotal     *float64 `json:"line_total,omitempty" validate:"omitempty,gte=0"`
}

// EditTotalRequest sets the line total and back-solves the unit price.
type EditTotalRequest struct {
	Total *float64 `json:"total" validate:"required,gte=0"`
}

// PreviewRequest prices an ad-hoc line list without persisting anything.
type PreviewRequest struct {
	TaxEnabled        bool        `json:"tax_enabled"`
	BankChargeEnabled bool        `json:"bank_charge_enabled"`
	DefaultTaxRate    *float64    `json:"default_tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Lines             []LineInput `json:"lines" validate:"max=500,dive"`
}

// ListDocumentsRequest filters, sorts and pages the document list.
type ListDocumentsRequest struct {
	Kind       *Kind      `json:"kind,omitempty"`
	Status     *Status    `json:"status,omitempty"`
	CustomerID *int64     `json:"customer_id,omitempty"`
	VehicleID  *int64     `json:"vehicle_id,omitempty"`
	JobID      *int64     `json:"job_id,omitempty"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	DateTo     *time.Time `json:"date_to,omitempty"`
	Search     string     `json:"search,omitempty"`
	SortBy     string     `json:"sort_by,omitempty"`
	SortDir    string     `json:"sort_dir,omitempty"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
}
