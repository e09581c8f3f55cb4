package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagedesk/garagedesk/internal/platform/db"
	"github.com/garagedesk/garagedesk/internal/shared"
)

// Repository persists catalog items.
type Repository interface {
	Get(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, req ListItemsRequest) ([]Item, int, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const itemColumns = `id, sku, description, unit_price, unit_cost, tax_rate, active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

func (r *repository) List(ctx context.Context, req ListItemsRequest) ([]Item, int, error) {
	var conditions []string
	var args []any
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		n := strconv.Itoa(len(args))
		conditions = append(conditions, "(sku ILIKE $"+n+" OR description ILIKE $"+n+")")
	}
	if req.Active != nil {
		args = append(args, *req.Active)
		conditions = append(conditions, "active = $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM catalog_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := `SELECT ` + itemColumns + ` FROM catalog_items` + where +
		` ORDER BY sku ASC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO catalog_items (sku, description, unit_price, unit_cost, tax_rate, active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		item.SKU, item.Description, db.Numeric(item.UnitPrice, 4), db.NullableNumeric(item.UnitCost, 4),
		db.NullableNumeric(item.TaxRate, 3), item.Active,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Item{}, ErrDuplicateSKU
		}
		return Item{}, err
	}
	return item, nil
}

func (r *repository) Update(ctx context.Context, item Item) error {
	tag, err := r.db.Exec(ctx, `UPDATE catalog_items SET description = $1, unit_price = $2, unit_cost = $3, tax_rate = $4, active = $5, updated_at = NOW() WHERE id = $6`,
		item.Description, db.Numeric(item.UnitPrice, 4), db.NullableNumeric(item.UnitCost, 4),
		db.NullableNumeric(item.TaxRate, 3), item.Active, item.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var unitPrice, unitCost, taxRate pgtype.Numeric
	err := row.Scan(&item.ID, &item.SKU, &item.Description, &unitPrice, &unitCost, &taxRate, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.UnitPrice = db.Float(unitPrice)
	item.UnitCost = db.NullableFloat(unitCost)
	item.TaxRate = db.NullableFloat(taxRate)
	return item, nil
}
