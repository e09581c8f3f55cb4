package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/garagedesk/garagedesk/internal/platform/cache"
	"github.com/garagedesk/garagedesk/internal/shared"
)

// Service manages the stock-item catalog.
type Service struct {
	repo     Repository
	cache    *cache.Versioned
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the catalog service. cache may be nil.
func NewService(repo Repository, itemCache *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: itemCache, validate: shared.NewValidator(), logger: logger}
}

// Get returns one item, served from cache when possible.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	key, err := s.cache.BuildKey(ctx, "item", strconv.FormatInt(id, 10))
	if err != nil {
		s.logger.Warn("catalog cache key", slog.Any("error", err))
		return s.repo.Get(ctx, id)
	}
	var item Item
	err = s.cache.FetchJSON(ctx, key, &item, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// List returns a page of items.
func (s *Service) List(ctx context.Context, req ListItemsRequest) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list catalog items: %w", err)
	}
	return items, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// Create adds a new active item.
func (s *Service) Create(ctx context.Context, req CreateItemRequest) (Item, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return Item{}, err
	}
	item, err := s.repo.Create(ctx, Item{
		SKU:         req.SKU,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		UnitCost:    req.UnitCost,
		TaxRate:     req.TaxRate,
		Active:      true,
	})
	if err != nil {
		return Item{}, fmt.Errorf("create catalog item: %w", err)
	}
	s.invalidate(ctx)
	return item, nil
}

// Update patches an item. Existing document lines are unaffected.
func (s *Service) Update(ctx context.Context, id int64, req UpdateItemRequest) (Item, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return Item{}, err
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	if req.UnitCost != nil {
		item.UnitCost = req.UnitCost
	}
	if req.TaxRate != nil {
		item.TaxRate = req.TaxRate
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, fmt.Errorf("update catalog item: %w", err)
	}
	s.invalidate(ctx)
	return item, nil
}

// Lookup returns an active item for populating a document line.
func (s *Service) Lookup(ctx context.Context, id int64) (Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !item.Active {
		return Item{}, fmt.Errorf("%w: %s", ErrInactive, item.SKU)
	}
	return item, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
}
