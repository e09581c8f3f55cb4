package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagedesk/garagedesk/internal/catalog"
	"github.com/garagedesk/garagedesk/internal/platform/httpx"
	"github.com/garagedesk/garagedesk/internal/pricing"
	"github.com/garagedesk/garagedesk/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	mu      sync.Mutex
	docs    map[int64]Document
	nextID  int64
	seq     map[string]int
	txError error
	saves   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{docs: make(map[int64]Document), nextID: 1, seq: make(map[string]int)}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	snapshot := make(map[int64]Document, len(m.docs))
	for id, doc := range m.docs {
		snapshot[id] = cloneDocument(doc)
	}
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.docs = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, id int64) (Document, error) {
	return m.Get(ctx, id)
}

func (m *mockRepository) List(_ context.Context, req ListDocumentsRequest) ([]Summary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, doc := range m.docs {
		if req.Kind != nil && doc.Kind != *req.Kind {
			continue
		}
		if req.Status != nil && doc.Status != *req.Status {
			continue
		}
		out = append(out, Summary{ID: doc.ID, Kind: doc.Kind, DocNumber: doc.DocNumber, Status: doc.Status, LineCount: len(doc.Lines), Snapshot: doc.Snapshot})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockRepository) Create(_ context.Context, doc Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = m.nextID
	m.nextID++
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	m.docs[doc.ID] = cloneDocument(doc)
	return doc, nil
}

func (m *mockRepository) Save(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return ErrNotFound
	}
	m.saves++
	m.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockRepository) GenerateNumber(_ context.Context, kind Kind, date time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := kind.Prefix() + date.Format("0601")
	m.seq[key]++
	return fmt.Sprintf("%s-%s-%04d", kind.Prefix(), date.Format("0601"), m.seq[key]), nil
}

func cloneDocument(doc Document) Document {
	doc.Lines = append(doc.Lines[:0:0], doc.Lines...)
	return doc
}

type mockCatalog struct {
	items map[int64]catalog.Item
}

func (m mockCatalog) Lookup(_ context.Context, id int64) (catalog.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	if !item.Active {
		return catalog.Item{}, catalog.ErrInactive
	}
	return item, nil
}

type mockAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (m *mockAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type mockIdempotency struct {
	keys map[string]bool
}

func (m *mockIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *mockIdempotency) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type mockNotifier struct {
	events []FinalizedEvent
	err    error
}

func (m *mockNotifier) NotifyFinalized(_ context.Context, event FinalizedEvent) error {
	m.events = append(m.events, event)
	return m.err
}

type mockRecorder struct {
	finalized map[string]int
	edits     map[string]int
}

func (m *mockRecorder) DocumentFinalized(kind string) { m.finalized[kind]++ }
func (m *mockRecorder) LineEdit(op string)            { m.edits[op]++ }

type fixture struct {
	svc      *Service
	repo     *mockRepository
	audit    *mockAudit
	idem     *mockIdempotency
	notifier *mockNotifier
	metrics  *mockRecorder
}

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMockRepository(),
		audit:    &mockAudit{},
		idem:     &mockIdempotency{keys: make(map[string]bool)},
		notifier: &mockNotifier{},
		metrics:  &mockRecorder{finalized: make(map[string]int), edits: make(map[string]int)},
	}
	f.svc = NewService(f.repo, Dependencies{
		Catalog: mockCatalog{items: map[int64]catalog.Item{
			1: {ID: 1, SKU: "OF-1", Description: "Oil filter", UnitPrice: 12, UnitCost: f64(7), Active: true},
			2: {ID: 2, SKU: "OLD", Description: "Retired part", UnitPrice: 5, Active: false},
		}},
		Audit:          f.audit,
		Idempotency:    f.idem,
		Notifier:       f.notifier,
		Metrics:        f.metrics,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		DefaultTaxRate: pricing.DefaultTaxRate,
		Now:            func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) create(t *testing.T, req CreateDocumentRequest) View {
	t.Helper()
	view, err := f.svc.Create(context.Background(), req, "")
	require.NoError(t, err)
	return view
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateAssignsNumberAndSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := shared.ContextWithActor(context.Background(), 42)

	view, err := f.svc.Create(ctx, CreateDocumentRequest{
		Kind:              KindQuotation,
		DocDate:           "2026-02-03",
		TaxEnabled:        true,
		BankChargeEnabled: true,
		Lines: []LineInput{
			{Description: "Labour", Quantity: 2, UnitPrice: 50, UnitCost: f64(20)},
		},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "QT-2602-0001", view.DocNumber)
	assert.Equal(t, StatusDraft, view.Status)
	assert.Equal(t, int64(42), view.CreatedBy)
	assert.Equal(t, 15.0, view.DefaultTaxRate)
	assert.Equal(t, 117.3, view.Totals.GrandTotal)
	assert.Equal(t, 117.3, view.Snapshot.GrandTotal)
	require.NotNil(t, view.Snapshot.EstimatedProfit)
	assert.Equal(t, 60.0, *view.Snapshot.EstimatedProfit)
	assert.Equal(t, []string{"document.create"}, f.audit.actions())

	second := f.create(t, CreateDocumentRequest{Kind: KindInvoice, DocDate: "2026-02-10"})
	assert.Equal(t, "INV-2602-0001", second.DocNumber)
	third := f.create(t, CreateDocumentRequest{Kind: KindInvoice, DocDate: "2026-02-11"})
	assert.Equal(t, "INV-2602-0002", third.DocNumber)
}

func TestZeroDefaultTaxRateIsKept(t *testing.T) {
	svc := NewService(newMockRepository(), Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	})
	lines := []LineInput{{Description: "Labour", Quantity: 1, UnitPrice: 100}}

	view, err := svc.Create(context.Background(), CreateDocumentRequest{
		Kind:       KindInvoice,
		TaxEnabled: true,
		Lines:      lines,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, view.DefaultTaxRate)
	assert.Equal(t, 0.0, view.Totals.TaxTotal)
	assert.Equal(t, 100.0, view.Totals.Total)
	assert.Equal(t, 0.0, view.Snapshot.TaxTotal)

	totals, err := svc.Preview(context.Background(), PreviewRequest{TaxEnabled: true, Lines: lines})
	require.NoError(t, err)
	assert.Equal(t, 0.0, totals.TaxTotal)
	assert.Equal(t, 100.0, totals.GrandTotal)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]CreateDocumentRequest{
		"unknown kind":       {Kind: "RECEIPT"},
		"bad date":           {Kind: KindInvoice, DocDate: "03/02/2026"},
		"negative quantity":  {Kind: KindInvoice, Lines: []LineInput{{Quantity: -1, UnitPrice: 1}}},
		"negative total":     {Kind: KindInvoice, Lines: []LineInput{{Quantity: 1, LineTotal: f64(-3)}}},
		"tax rate above 100": {Kind: KindInvoice, DefaultTaxRate: f64(150)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), req, "")
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestCreateIdempotency(t *testing.T) {
	f := newFixture(t)
	req := CreateDocumentRequest{Kind: KindInvoice}

	_, err := f.svc.Create(context.Background(), req, "key-1")
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), req, "key-1")
	assert.ErrorIs(t, err, httpx.ErrConflict)

	f.repo.txError = errors.New("db down")
	_, err = f.svc.Create(context.Background(), req, "key-2")
	require.Error(t, err)
	assert.False(t, f.idem.keys["key-2"], "failed create releases its key")
}

func TestCreateWithCatalogLine(t *testing.T) {
	f := newFixture(t)
	view := f.create(t, CreateDocumentRequest{
		Kind:  KindInvoice,
		Lines: []LineInput{{CatalogItemID: ptrInt(1), Quantity: 3}},
	})
	require.Len(t, view.Lines, 1)
	line := view.Lines[0]
	assert.Equal(t, "Oil filter", line.Description)
	assert.Equal(t, 12.0, line.UnitPrice)
	require.NotNil(t, line.ItemID)
	assert.Equal(t, "1", *line.ItemID)
	assert.Equal(t, 36.0, view.Totals.Subtotal)
	assert.Equal(t, 21.0, view.Totals.CostTotal)

	_, err := f.svc.Create(context.Background(), CreateDocumentRequest{
		Kind:  KindInvoice,
		Lines: []LineInput{{CatalogItemID: ptrInt(2), Quantity: 1}},
	}, "")
	assert.ErrorIs(t, err, catalog.ErrInactive)
}

func TestLineEditingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, CreateDocumentRequest{Kind: KindInvoice, TaxEnabled: true})

	view, line, err := f.svc.AddLine(ctx, doc.ID, AddLineRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, line.Quantity)
	assert.Equal(t, 0.0, line.UnitPrice)
	assert.Equal(t, 0.0, view.Totals.Subtotal)

	view, err = f.svc.PatchLine(ctx, doc.ID, line.ID, PatchLineRequest{Quantity: f64(4), UnitPrice: f64(10)})
	require.NoError(t, err)
	assert.Equal(t, 40.0, view.Totals.Subtotal)

	view, err = f.svc.EditLineTotal(ctx, doc.ID, line.ID, EditTotalRequest{Total: f64(100)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, view.Lines[0].UnitPrice)
	assert.Equal(t, 100.0, view.Totals.Subtotal)
	assert.Equal(t, 115.0, view.Totals.GrandTotal)
	assert.Equal(t, 115.0, view.Snapshot.GrandTotal, "draft snapshot follows the lines")

	view, err = f.svc.PatchLine(ctx, doc.ID, line.ID, PatchLineRequest{UnitPrice: f64(30)})
	require.NoError(t, err)
	assert.Nil(t, view.Lines[0].OverrideTotal)
	assert.Equal(t, 120.0, view.Totals.Subtotal)

	_, catalogLine, err := f.svc.AddLine(ctx, doc.ID, AddLineRequest{CatalogItemID: ptrInt(1), Quantity: f64(2)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, catalogLine.Quantity)

	view, err = f.svc.RemoveLine(ctx, doc.ID, line.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, catalogLine.ID, view.Lines[0].ID)
	assert.Equal(t, 24.0, view.Totals.Subtotal)

	assert.Equal(t, 2, f.metrics.edits["add"])
	assert.Equal(t, 2, f.metrics.edits["patch"])
	assert.Equal(t, 1, f.metrics.edits["total"])
	assert.Equal(t, 1, f.metrics.edits["remove"])
}

func TestPatchLineRejectsConflictingEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, CreateDocumentRequest{Kind: KindInvoice, Lines: []LineInput{{Quantity: 2, UnitPrice: 10}}})
	lineID := doc.Lines[0].ID

	_, err := f.svc.PatchLine(ctx, doc.ID, lineID, PatchLineRequest{Quantity: f64(3), LineTotal: f64(50)})
	assert.ErrorIs(t, err, ErrConflictingEdit)

	desc := "Brake fluid"
	view, err := f.svc.PatchLine(ctx, doc.ID, lineID, PatchLineRequest{Description: &desc, LineTotal: f64(50)})
	require.NoError(t, err)
	assert.Equal(t, "Brake fluid", view.Lines[0].Description)
	assert.Equal(t, 25.0, view.Lines[0].UnitPrice)
	assert.Equal(t, 50.0, view.Totals.Subtotal)
}

func TestEditLineTotalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, CreateDocumentRequest{Kind: KindInvoice, Lines: []LineInput{{Quantity: 1, UnitPrice: 10}}})

	_, err := f.svc.EditLineTotal(ctx, doc.ID, doc.Lines[0].ID, EditTotalRequest{})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.svc.EditLineTotal(ctx, doc.ID, doc.Lines[0].ID, EditTotalRequest{Total: f64(-1)})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.svc.EditLineTotal(ctx, doc.ID, "nope", EditTotalRequest{Total: f64(1)})
	assert.ErrorIs(t, err, ErrLineNotFound)
	_, err = f.svc.EditLineTotal(ctx, 999, doc.Lines[0].ID, EditTotalRequest{Total: f64(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.create(t, CreateDocumentRequest{Kind: KindInvoice})
	_, err := f.svc.Finalize(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	doc := f.create(t, CreateDocumentRequest{
		Kind:              KindInvoice,
		TaxEnabled:        true,
		BankChargeEnabled: true,
		Lines:             []LineInput{{Description: "Service", Quantity: 1, UnitPrice: 100}},
	})
	f.notifier.err = errors.New("queue unavailable")

	view, err := f.svc.Finalize(ctx, doc.ID)
	require.NoError(t, err, "notification failure does not fail finalize")
	assert.Equal(t, StatusFinalized, view.Status)
	assert.Equal(t, 117.3, view.Snapshot.GrandTotal)
	require.NotNil(t, view.FinalizedAt)
	assert.Equal(t, fixedNow, *view.FinalizedAt)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, doc.DocNumber, f.notifier.events[0].DocNumber)
	assert.Equal(t, 117.3, f.notifier.events[0].GrandTotal)
	assert.Equal(t, 1, f.metrics.finalized["INVOICE"])

	_, err = f.svc.PatchLine(ctx, doc.ID, doc.Lines[0].ID, PatchLineRequest{Quantity: f64(2)})
	assert.ErrorIs(t, err, ErrFinalized)
	assert.ErrorIs(t, f.svc.Delete(ctx, doc.ID), ErrFinalized)
	_, err = f.svc.Finalize(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	view, err = f.svc.Reopen(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, view.Status)

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	_, err = f.svc.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, f.audit.actions(), "document.finalize")
	assert.Contains(t, f.audit.actions(), "document.reopen")
	assert.Contains(t, f.audit.actions(), "document.delete")
}

func TestFailedMutationIsRolledBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, CreateDocumentRequest{Kind: KindInvoice, Lines: []LineInput{{Quantity: 1, UnitPrice: 10}}})
	saves := f.repo.saves

	_, err := f.svc.RemoveLine(ctx, doc.ID, "missing")
	assert.ErrorIs(t, err, ErrLineNotFound)
	assert.Equal(t, saves, f.repo.saves)

	stored, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
}

func TestUpdateHeader(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, CreateDocumentRequest{Kind: KindInvoice, Lines: []LineInput{{Quantity: 1, UnitPrice: 200}}})

	on := true
	date := "2026-04-01"
	view, err := f.svc.UpdateHeader(context.Background(), doc.ID, UpdateDocumentRequest{
		TaxEnabled:     &on,
		DefaultTaxRate: f64(5),
		DocDate:        &date,
		CustomerID:     ptrInt(9),
	})
	require.NoError(t, err)
	assert.Equal(t, 210.0, view.Totals.GrandTotal)
	assert.Equal(t, "2026-04-01", view.DocDate.Format(DateLayout))
	require.NotNil(t, view.CustomerID)
	assert.Equal(t, int64(9), *view.CustomerID)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	totals, err := f.svc.Preview(context.Background(), PreviewRequest{
		TaxEnabled:        true,
		BankChargeEnabled: true,
		Lines: []LineInput{
			{Quantity: 1, UnitPrice: 100},
			{CatalogItemID: ptrInt(1), Quantity: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, totals.Subtotal)
	assert.Equal(t, 117.3, totals.GrandTotal)
	assert.Empty(t, f.repo.docs)
}

func TestListUsesRepositoryWithoutCache(t *testing.T) {
	f := newFixture(t)
	f.create(t, CreateDocumentRequest{Kind: KindInvoice})
	f.create(t, CreateDocumentRequest{Kind: KindQuotation})

	kind := KindQuotation
	items, page, err := f.svc.List(context.Background(), ListDocumentsRequest{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindQuotation, items[0].Kind)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 20, page.PerPage)
}

func ptrInt(v int64) *int64 { return &v }
