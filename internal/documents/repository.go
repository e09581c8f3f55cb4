package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagedesk/garagedesk/internal/platform/db"
	"github.com/garagedesk/garagedesk/internal/pricing"
	"github.com/garagedesk/garagedesk/internal/shared"
)

// Repository persists documents. Lines are stored verbatim with the
// document; totals are stored as the rounded snapshot.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (Document, error)
	GetForUpdate(ctx context.Context, id int64) (Document, error)
	List(ctx context.Context, req ListDocumentsRequest) ([]Summary, int, error)
	Create(ctx context.Context, doc Document) (Document, error)
	Save(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context, kind Kind, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const documentColumns = `id, kind, doc_number, doc_date, status, customer_id, vehicle_id, job_id, notes,
tax_enabled, bank_charge_enabled, default_tax_rate, lines,
subtotal, tax_total, bank_charge, total, grand_total, estimated_profit,
created_by, finalized_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, query string, id int64) (Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %d: %w", id, err)
	}
	return doc, nil
}

var sortColumns = map[string]string{
	"doc_date":    "doc_date",
	"doc_number":  "doc_number",
	"grand_total": "grand_total",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches term literally anywhere in the column.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *repository) List(ctx context.Context, req ListDocumentsRequest) ([]Summary, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if req.Kind != nil {
		add("kind = ?", string(*req.Kind))
	}
	if req.Status != nil {
		add("status = ?", string(*req.Status))
	}
	if req.CustomerID != nil {
		add("customer_id = ?", *req.CustomerID)
	}
	if req.VehicleID != nil {
		add("vehicle_id = ?", *req.VehicleID)
	}
	if req.JobID != nil {
		add("job_id = ?", *req.JobID)
	}
	if req.DateFrom != nil {
		add("doc_date >= ?", *req.DateFrom)
	}
	if req.DateTo != nil {
		add("doc_date <= ?", *req.DateTo)
	}
	if req.Search != "" {
		add(`(doc_number ILIKE ? ESCAPE '\' OR COALESCE(notes, '') ILIKE ? ESCAPE '\')`, containsPattern(req.Search))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	sortCol, ok := sortColumns[req.SortBy]
	if !ok {
		sortCol = "doc_date"
	}
	dir := "DESC"
	if strings.EqualFold(req.SortDir, "asc") {
		dir = "ASC"
	}
	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := `SELECT id, kind, doc_number, doc_date, status, customer_id, vehicle_id, job_id,
jsonb_array_length(lines), subtotal, tax_total, bank_charge, total, grand_total, estimated_profit,
finalized_at, updated_at FROM documents` + where +
		` ORDER BY ` + sortCol + ` ` + dir + `, id ` + dir +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var kind, status string
		var snap snapshotColumns
		if err := rows.Scan(&s.ID, &kind, &s.DocNumber, &s.DocDate, &status, &s.CustomerID, &s.VehicleID, &s.JobID,
			&s.LineCount, &snap.subtotal, &snap.taxTotal, &snap.bankCharge, &snap.total, &snap.grandTotal, &snap.profit,
			&s.FinalizedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		s.Kind = Kind(kind)
		s.Status = Status(status)
		s.Snapshot = snap.snapshot()
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, doc Document) (Document, error) {
	linesJSON, err := marshalLines(doc.Lines)
	if err != nil {
		return Document{}, err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO documents (kind, doc_number, doc_date, status, customer_id, vehicle_id, job_id, notes,
tax_enabled, bank_charge_enabled, default_tax_rate, lines,
subtotal, tax_total, bank_charge, total, grand_total, estimated_profit, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING id, created_at, updated_at`,
		string(doc.Kind), doc.DocNumber, doc.DocDate, string(doc.Status), doc.CustomerID, doc.VehicleID, doc.JobID, doc.Notes,
		doc.TaxEnabled, doc.BankChargeEnabled, db.Numeric(doc.DefaultTaxRate, 3), linesJSON,
		db.Numeric(doc.Snapshot.Subtotal, 2), db.Numeric(doc.Snapshot.TaxTotal, 2), db.Numeric(doc.Snapshot.BankCharge, 2),
		db.Numeric(doc.Snapshot.Total, 2), db.Numeric(doc.Snapshot.GrandTotal, 2), db.NullableNumeric(doc.Snapshot.EstimatedProfit, 2),
		doc.CreatedBy,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (r *repository) Save(ctx context.Context, doc Document) error {
	linesJSON, err := marshalLines(doc.Lines)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE documents SET doc_date = $1, status = $2, customer_id = $3, vehicle_id = $4, job_id = $5, notes = $6,
tax_enabled = $7, bank_charge_enabled = $8, default_tax_rate = $9, lines = $10,
subtotal = $11, tax_total = $12, bank_charge = $13, total = $14, grand_total = $15, estimated_profit = $16,
finalized_at = $17, updated_at = NOW() WHERE id = $18`,
		doc.DocDate, string(doc.Status), doc.CustomerID, doc.VehicleID, doc.JobID, doc.Notes,
		doc.TaxEnabled, doc.BankChargeEnabled, db.Numeric(doc.DefaultTaxRate, 3), linesJSON,
		db.Numeric(doc.Snapshot.Subtotal, 2), db.Numeric(doc.Snapshot.TaxTotal, 2), db.Numeric(doc.Snapshot.BankCharge, 2),
		db.Numeric(doc.Snapshot.Total, 2), db.Numeric(doc.Snapshot.GrandTotal, 2), db.NullableNumeric(doc.Snapshot.EstimatedProfit, 2),
		doc.FinalizedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("update document %d: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GenerateNumber(ctx context.Context, kind Kind, date time.Time) (string, error) {
	// INV-{YY}{MM}-{SEQ} / QT-{YY}{MM}-{SEQ}
	var seq int64
	period := date.Format("200601")
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, kind.Prefix(), period).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("generate document number: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", kind.Prefix(), date.Format("0601"), seq), nil
}

type snapshotColumns struct {
	subtotal, taxTotal, bankCharge, total, grandTotal, profit pgtype.Numeric
}

func (c snapshotColumns) snapshot() Snapshot {
	return Snapshot{
		Subtotal:        db.Float(c.subtotal),
		TaxTotal:        db.Float(c.taxTotal),
		BankCharge:      db.Float(c.bankCharge),
		Total:           db.Float(c.total),
		GrandTotal:      db.Float(c.grandTotal),
		EstimatedProfit: db.NullableFloat(c.profit),
	}
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var kind, status string
	var defaultRate pgtype.Numeric
	var linesJSON []byte
	var snap snapshotColumns
	err := row.Scan(&doc.ID, &kind, &doc.DocNumber, &doc.DocDate, &status, &doc.CustomerID, &doc.VehicleID, &doc.JobID, &doc.Notes,
		&doc.TaxEnabled, &doc.BankChargeEnabled, &defaultRate, &linesJSON,
		&snap.subtotal, &snap.taxTotal, &snap.bankCharge, &snap.total, &snap.grandTotal, &snap.profit,
		&doc.CreatedBy, &doc.FinalizedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	doc.Kind = Kind(kind)
	doc.Status = Status(status)
	doc.DefaultTaxRate = db.Float(defaultRate)
	doc.Snapshot = snap.snapshot()
	doc.Lines = []pricing.LineItem{}
	if len(linesJSON) > 0 {
		if err := json.Unmarshal(linesJSON, &doc.Lines); err != nil {
			return Document{}, fmt.Errorf("decode lines: %w", err)
		}
	}
	return doc, nil
}

func marshalLines(lines []pricing.LineItem) ([]byte, error) {
	if lines == nil {
		lines = []pricing.LineItem{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode lines: %w", err)
	}
	return raw, nil
}
