package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/garagedesk/garagedesk/internal/catalog"
	"github.com/garagedesk/garagedesk/internal/platform/cache"
	"github.com/garagedesk/garagedesk/internal/platform/httpx"
	"github.com/garagedesk/garagedesk/internal/pricing"
	"github.com/garagedesk/garagedesk/internal/shared"
)

const idempotencyModule = "documents"

// CatalogLookup resolves catalog items used to populate lines.
type CatalogLookup interface {
	Lookup(ctx context.Context, id int64) (catalog.Item, error)
}

// AuditRecorder records document lifecycle events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard rejects replayed create requests.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Notifier is told about finalized documents.
type Notifier interface {
	NotifyFinalized(ctx context.Context, event FinalizedEvent) error
}

// Recorder receives domain metrics.
type Recorder interface {
	DocumentFinalized(kind string)
	LineEdit(op string)
}

// Dependencies are the optional collaborators of the Service. Nil members
// are skipped.
type Dependencies struct {
	Catalog        CatalogLookup
	Audit          AuditRecorder
	Idempotency    IdempotencyGuard
	Cache          *cache.Versioned
	Notifier       Notifier
	Metrics        Recorder
	Logger         *slog.Logger
	// DefaultTaxRate seeds new documents and previews. Zero is a valid
	// rate for tax-exempt workshops.
	DefaultTaxRate float64
	Now            func() time.Time
}

// Service implements the document editor operations. Every mutation runs
// load, mutate, recompute and save inside one transaction.
type Service struct {
	repo     Repository
	deps     Dependencies
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the documents service.
func NewService(repo Repository, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{repo: repo, deps: deps, validate: shared.NewValidator(), logger: deps.Logger}
}

// Create opens a draft. A non-empty idempotency key makes replays fail with
// a conflict instead of creating a second document.
func (s *Service) Create(ctx context.Context, req CreateDocumentRequest, idempotencyKey string) (View, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return View{}, err
	}
	date := s.deps.Now()
	if req.DocDate != "" {
		parsed, err := time.Parse(DateLayout, req.DocDate)
		if err != nil {
			return View{}, fmt.Errorf("%w: doc_date: %v", httpx.ErrValidation, err)
		}
		date = parsed
	}
	rate := s.deps.DefaultTaxRate
	if req.DefaultTaxRate != nil {
		rate = *req.DefaultTaxRate
	}

	doc := NewDocument(req.Kind, date, rate)
	doc.CustomerID = req.CustomerID
	doc.VehicleID = req.VehicleID
	doc.JobID = req.JobID
	doc.Notes = req.Notes
	doc.TaxEnabled = req.TaxEnabled
	doc.BankChargeEnabled = req.BankChargeEnabled
	doc.CreatedBy = shared.ActorFromContext(ctx)
	for i, in := range req.Lines {
		line, err := s.buildLine(ctx, in)
		if err != nil {
			return View{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		if _, err := doc.AddLine(line); err != nil {
			return View{}, err
		}
	}
	doc.Refresh()

	if idempotencyKey != "" && s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return View{}, fmt.Errorf("%w: %v", httpx.ErrConflict, err)
			}
			return View{}, fmt.Errorf("idempotency check: %w", err)
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.GenerateNumber(ctx, doc.Kind, doc.DocDate)
		if err != nil {
			return err
		}
		doc.DocNumber = number
		created, err := repo.Create(ctx, doc)
		if err != nil {
			return err
		}
		doc = created
		return nil
	})
	if err != nil {
		if idempotencyKey != "" && s.deps.Idempotency != nil {
			if derr := s.deps.Idempotency.Delete(ctx, idempotencyKey); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return View{}, fmt.Errorf("create document: %w", err)
	}

	s.audit(ctx, "document.create", doc, map[string]any{"doc_number": doc.DocNumber, "kind": doc.Kind})
	s.invalidate(ctx)
	s.logger.Info("document created", slog.Int64("id", doc.ID), slog.String("doc_number", doc.DocNumber))
	return doc.View(), nil
}

// Get returns a document with totals computed from its current lines.
func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return doc.View(), nil
}

type listPage struct {
	Items []Summary `json:"items"`
	Total int       `json:"total"`
}

// List returns a filtered page of document summaries.
func (s *Service) List(ctx context.Context, req ListDocumentsRequest) ([]Summary, shared.Pagination, error) {
	load := func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, req)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Total: total}, nil
	}

	var page listPage
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	key, err := s.deps.Cache.BuildKey(ctx, "list", string(raw))
	if err != nil {
		s.logger.Warn("document list cache key", slog.Any("error", err))
		key = ""
	}
	if key == "" {
		items, total, err := s.repo.List(ctx, req)
		if err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("list documents: %w", err)
		}
		page = listPage{Items: items, Total: total}
	} else if err := s.deps.Cache.FetchJSON(ctx, key, &page, load); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list documents: %w", err)
	}
	return page.Items, shared.NewPagination(req.Page, req.PerPage, page.Total), nil
}

// UpdateHeader edits document-level fields of a draft.
func (s *Service) UpdateHeader(ctx context.Context, id int64, req UpdateDocumentRequest) (View, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return View{}, err
	}
	patch := HeaderPatch{
		CustomerID:        req.CustomerID,
		VehicleID:         req.VehicleID,
		JobID:             req.JobID,
		Notes:             req.Notes,
		TaxEnabled:        req.TaxEnabled,
		BankChargeEnabled: req.BankChargeEnabled,
		DefaultTaxRate:    req.DefaultTaxRate,
	}
	if req.DocDate != nil {
		date, err := time.Parse(DateLayout, *req.DocDate)
		if err != nil {
			return View{}, fmt.Errorf("%w: doc_date: %v", httpx.ErrValidation, err)
		}
		patch.DocDate = &date
	}
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		return doc.UpdateHeader(patch)
	})
	if err != nil {
		return View{}, err
	}
	return doc.View(), nil
}

// AddLine appends an empty line, a catalog-populated line or the supplied line.
func (s *Service) AddLine(ctx context.Context, id int64, req AddLineRequest) (View, pricing.LineItem, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return View{}, pricing.LineItem{}, err
	}
	var line pricing.LineItem
	switch {
	case req.CatalogItemID != nil && req.Line != nil:
		return View{}, pricing.LineItem{}, fmt.Errorf("%w: catalog_item_id and line are mutually exclusive", httpx.ErrValidation)
	case req.CatalogItemID != nil:
		qty := 1.0
		if req.Quantity != nil {
			qty = *req.Quantity
		}
		built, err := s.buildLine(ctx, LineInput{CatalogItemID: req.CatalogItemID, Quantity: qty})
		if err != nil {
			return View{}, pricing.LineItem{}, err
		}
		line = built
	case req.Line != nil:
		built, err := s.buildLine(ctx, *req.Line)
		if err != nil {
			return View{}, pricing.LineItem{}, err
		}
		line = built
	default:
		line = NewLine()
		if req.Quantity != nil {
			line.Quantity = *req.Quantity
		}
	}

	var added pricing.LineItem
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		var err error
		added, err = doc.AddLine(line)
		return err
	})
	if err != nil {
		return View{}, pricing.LineItem{}, err
	}
	s.lineEdit("add")
	return doc.View(), added, nil
}

// RemoveLine deletes a line from a draft.
func (s *Service) RemoveLine(ctx context.Context, id int64, lineID string) (View, error) {
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		return doc.RemoveLine(lineID)
	})
	if err != nil {
		return View{}, err
	}
	s.lineEdit("remove")
	return doc.View(), nil
}

// PatchLine edits line fields. A line total in the same patch is applied
// last and may not be combined with a quantity or unit price edit.
func (s *Service) PatchLine(ctx context.Context, id int64, lineID string, req PatchLineRequest) (View, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return View{}, err
	}
	if req.LineTotal != nil && (req.Quantity != nil || req.UnitPrice != nil) {
		return View{}, ErrConflictingEdit
	}
	patch := LinePatch{
		Description:   req.Description,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		UnitCost:      req.UnitCost,
		TaxRate:       req.TaxRate,
		ClearUnitCost: req.ClearUnitCost,
		ClearTaxRate:  req.ClearTaxRate,
	}
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		if _, err := doc.PatchLine(lineID, patch); err != nil {
			return err
		}
		if req.LineTotal != nil {
			_, err := doc.EditLineTotal(lineID, *req.LineTotal)
			return err
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if req.LineTotal != nil {
		s.lineEdit("total")
	} else {
		s.lineEdit("patch")
	}
	return doc.View(), nil
}

// EditLineTotal sets the authoritative line total.
func (s *Service) EditLineTotal(ctx context.Context, id int64, lineID string, req EditTotalRequest) (View, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return View{}, err
	}
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		_, err := doc.EditLineTotal(lineID, *req.Total)
		return err
	})
	if err != nil {
		return View{}, err
	}
	s.lineEdit("total")
	return doc.View(), nil
}

// Preview prices an ad-hoc line list.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (pricing.Totals, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return pricing.Totals{}, err
	}
	lines := make([]pricing.LineItem, 0, len(req.Lines))
	for i, in := range req.Lines {
		line, err := s.buildLine(ctx, in)
		if err != nil {
			return pricing.Totals{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, line)
	}
	rate := s.deps.DefaultTaxRate
	if req.DefaultTaxRate != nil {
		rate = *req.DefaultTaxRate
	}
	return pricing.ComputeTotals(lines, req.TaxEnabled, req.BankChargeEnabled, rate).Rounded(), nil
}

// Finalize snapshots the totals and locks the document.
func (s *Service) Finalize(ctx context.Context, id int64) (View, error) {
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		return doc.Finalize(s.deps.Now())
	})
	if err != nil {
		return View{}, err
	}
	s.audit(ctx, "document.finalize", doc, map[string]any{"grand_total": doc.Snapshot.GrandTotal})
	if s.deps.Metrics != nil {
		s.deps.Metrics.DocumentFinalized(string(doc.Kind))
	}
	if s.deps.Notifier != nil {
		event := FinalizedEvent{
			DocumentID:  doc.ID,
			Kind:        doc.Kind,
			DocNumber:   doc.DocNumber,
			CustomerID:  doc.CustomerID,
			GrandTotal:  doc.Snapshot.GrandTotal,
			FinalizedAt: *doc.FinalizedAt,
		}
		if err := s.deps.Notifier.NotifyFinalized(ctx, event); err != nil {
			s.logger.Warn("notify finalized document", slog.Int64("id", doc.ID), slog.Any("error", err))
		}
	}
	return doc.View(), nil
}

// Reopen returns a finalized document to draft.
func (s *Service) Reopen(ctx context.Context, id int64) (View, error) {
	doc, err := s.mutate(ctx, id, func(doc *Document) error {
		return doc.Reopen()
	})
	if err != nil {
		return View{}, err
	}
	s.audit(ctx, "document.reopen", doc, nil)
	return doc.View(), nil
}

// Delete removes a draft document.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var deleted Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		doc, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Editable() {
			return ErrFinalized
		}
		deleted = doc
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "document.delete", deleted, map[string]any{"doc_number": deleted.DocNumber})
	s.invalidate(ctx)
	return nil
}

func (s *Service) mutate(ctx context.Context, id int64, fn func(*Document) error) (Document, error) {
	var out Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		doc, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		if doc.Editable() {
			doc.Refresh()
		}
		if err := repo.Save(ctx, doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.invalidate(ctx)
	return out, nil
}

// buildLine turns request input into a line. A catalog reference copies the
// item's description, price, cost and tax rate; a non-empty description in
// the input replaces the catalog one.
func (s *Service) buildLine(ctx context.Context, in LineInput) (pricing.LineItem, error) {
	line := NewLine()
	if in.CatalogItemID != nil {
		if s.deps.Catalog == nil {
			return pricing.LineItem{}, fmt.Errorf("%w: catalog unavailable", httpx.ErrValidation)
		}
		item, err := s.deps.Catalog.Lookup(ctx, *in.CatalogItemID)
		if err != nil {
			return pricing.LineItem{}, err
		}
		line = item.LineItem(line.ID, in.Quantity)
		if in.Description != "" {
			line.Description = in.Description
		}
	} else {
		line.Description = in.Description
		line.Quantity = in.Quantity
		line.UnitPrice = in.UnitPrice
		line.UnitCost = in.UnitCost
		line.TaxRate = in.TaxRate
	}
	if in.LineTotal != nil {
		line = pricing.ApplyTotalEdit(line, *in.LineTotal)
	}
	return line, nil
}

func (s *Service) audit(ctx context.Context, action string, doc Document, meta map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	err := s.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "document",
		EntityID: strconv.FormatInt(doc.ID, 10),
		Meta:     meta,
		At:       s.deps.Now(),
	})
	if err != nil {
		s.logger.Warn("audit document", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.deps.Cache.Bump(ctx); err != nil {
		s.logger.Warn("document cache bump", slog.Any("error", err))
	}
}

func (s *Service) lineEdit(op string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.LineEdit(op)
	}
}
