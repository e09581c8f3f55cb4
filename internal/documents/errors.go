package documents

import (
	"fmt"

	"github.com/garagedesk/garagedesk/internal/platform/httpx"
)

var (
	ErrNotFound        = fmt.Errorf("document %w", httpx.ErrNotFound)
	ErrLineNotFound    = fmt.Errorf("line item %w", httpx.ErrNotFound)
	ErrFinalized       = fmt.Errorf("document is finalized: %w", httpx.ErrConflict)
	ErrInvalidStatus   = fmt.Errorf("invalid status transition: %w", httpx.ErrConflict)
	ErrConflictingEdit = fmt.Errorf("line total cannot be edited together with quantity or unit price: %w", httpx.ErrValidation)
	ErrEmptyDocument   = fmt.Errorf("document has no line items: %w", httpx.ErrValidation)
	ErrInvalidTotal    = fmt.Errorf("line total must be a non-negative number: %w", httpx.ErrValidation)
)
