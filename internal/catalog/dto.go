package catalog

// CreateItemRequest creates a catalog entry.
type CreateItemRequest struct {
	SKU         string   `json:"sku" validate:"required,max=64"`
	Description string   `json:"description" validate:"required,max=500"`
	UnitPrice   float64  `json:"unit_price" validate:"gte=0"`
	UnitCost    *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	TaxRate     *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdateItemRequest patches a catalog entry.
type UpdateItemRequest struct {
	Description *string  `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
	UnitPrice   *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	UnitCost    *float64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	TaxRate     *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Active      *bool    `json:"active,omitempty"`
}

// ListItemsRequest filters the catalog listing.
type ListItemsRequest struct {
	Search  string `json:"search"`
	Active  *bool  `json:"active,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}
