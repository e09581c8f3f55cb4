package catalog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/garagedesk/garagedesk/internal/platform/httpx"
	"github.com/garagedesk/garagedesk/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown catalog items.
	ErrNotFound = fmt.Errorf("catalog item %w", httpx.ErrNotFound)
	// ErrDuplicateSKU is returned when a SKU is already taken.
	ErrDuplicateSKU = fmt.Errorf("catalog sku %w", httpx.ErrDuplicate)
	// ErrInactive is returned when an inactive item is used to populate a line.
	ErrInactive = fmt.Errorf("catalog item inactive: %w", httpx.ErrValidation)
)

// Item is a stock part or labour rate that can populate a document line.
type Item struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	UnitPrice   float64   `json:"unit_price"`
	UnitCost    *float64  `json:"unit_cost,omitempty"`
	TaxRate     *float64  `json:"tax_rate,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reference is the opaque back-reference stored on a line item.
func (i Item) Reference() string {
	return strconv.FormatInt(i.ID, 10)
}

// LineItem populates a fresh line from the catalog entry. The line keeps a
// copy of the values; later catalog edits do not touch it.
func (i Item) LineItem(id string, quantity float64) pricing.LineItem {
	ref := i.Reference()
	line := pricing.LineItem{
		ID:          id,
		Description: i.Description,
		Quantity:    quantity,
		UnitPrice:   i.UnitPrice,
		ItemID:      &ref,
	}
	if i.UnitCost != nil {
		cost := *i.UnitCost
		line.UnitCost = &cost
	}
	if i.TaxRate != nil {
		rate := *i.TaxRate
		line.TaxRate = &rate
	}
	return line
}
