package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/backoffice/internal/ledger"
	"github.com/meridian-retail/backoffice/internal/platform/db"
)

// TxRepository exposes the transactional operations the engine needs. The
// embedded ledger port is bound to the same database transaction, so stock
// mutations and the order state change commit or roll back together.
type TxRepository interface {
	Ledger() ledger.TxPort

	NextCode(ctx context.Context) (string, error)
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	// GetOrderForUpdate locks the order row and returns it with items.
	GetOrderForUpdate(ctx context.Context, id int64) (*Order, error)
	// UpdateStatus moves the order from one status to another with extra
	// field updates. It fails with ErrInvalidTransition when the row is no
	// longer in the expected status (the loser of a concurrent race).
	UpdateStatus(ctx context.Context, id int64, from, to Status, fields map[string]any) error
	UpdateOrderFields(ctx context.Context, id int64, fields map[string]any) error
	UpdateItemPackageQty(ctx context.Context, itemID, qty int64, autoAdjusted bool, subtotal float64) error
	DeleteItem(ctx context.Context, itemID int64) error
	// SetItemReceived writes received_quantity once; it reports false when
	// the value was already set.
	SetItemReceived(ctx context.Context, itemID, qty int64) (bool, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Repository persists transfer orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction with a TxRepository bound to it.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: ledger.NewTxPort(tx)})
	})
}

const orderColumns = `id, code, source_location_id, target_location_id, status, expected_delivery,
	notes, rejection_reason, store_receive_note, created_by, confirmed_by, confirmed_at,
	shipped_at, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Code, &o.SourceLocationID, &o.TargetLocationID, &o.Status,
		&o.ExpectedDelivery, &o.Notes, &o.RejectionReason, &o.StoreReceiveNote,
		&o.CreatedBy, &o.ConfirmedBy, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const itemQuery = `
	SELECT i.id, i.order_id, i.product_id, i.quantity, i.unit_price, i.package_quantity,
	       i.auto_adjusted, i.received_quantity, i.discrepancy_reason, i.subtotal,
	       i.created_at, i.updated_at,
	       p.code, p.name, p.package_conversion, p.base_unit, p.package_unit
	FROM order_items i
	JOIN products p ON p.id = i.product_id
	WHERE i.order_id = $1
	ORDER BY i.id`

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.PackageQuantity, &it.AutoAdjusted, &it.ReceivedQuantity, &it.DiscrepancyReason,
			&it.Subtotal, &it.CreatedAt, &it.UpdatedAt,
			&it.ProductCode, &it.ProductName, &it.PackageConversion, &it.BaseUnit, &it.PackageUnit); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID fetches an order with its items.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	order.Items, err = scanItems(rows)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns orders matching the filter, newest first, with a total for
// pagination.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	where := ` WHERE ($1 = 0 OR target_location_id = $1)
	  AND ($2 = '' OR status = $2)
	  AND ($3::timestamptz IS NULL OR created_at >= $3)
	  AND ($4::timestamptz IS NULL OR created_at < $4)`
	args := []any{req.TargetLocationID, string(req.Status), nullTime(req.DateFrom), nullTime(req.DateTo)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC, id DESC LIMIT $5 OFFSET $6`,
		append(args, limit, req.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, o)
	}
	return result, total, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
