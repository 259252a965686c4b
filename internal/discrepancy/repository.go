package discrepancy

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists discrepancy reports in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, order_id, order_item_id, product_id, shipped_qty, received_qty, difference, classification, reason, reported_by, created_at, updated_at`

func scanReport(row pgx.Row) (Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.OrderID, &rep.OrderItemID, &rep.ProductID,
		&rep.ShippedQty, &rep.ReceivedQty, &rep.Difference, &rep.Classification,
		&rep.Reason, &rep.ReportedBy, &rep.CreatedAt, &rep.UpdatedAt)
	return rep, err
}

// Insert files a report. A retry for the same order item keeps the original
// record untouched.
func (r *Repository) Insert(ctx context.Context, rep Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO discrepancy_reports
			(order_id, order_item_id, product_id, shipped_qty, received_qty, difference, classification, reported_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (order_item_id) DO NOTHING`,
		rep.OrderID, rep.OrderItemID, rep.ProductID, rep.ShippedQty,
		rep.ReceivedQty, rep.Difference, rep.Classification, rep.ReportedBy)
	return err
}

// UpdateReason attaches or replaces the free-text reason on an existing
// report.
func (r *Repository) UpdateReason(ctx context.Context, orderItemID int64, reason string) (Report, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE discrepancy_reports
		SET reason = $1, updated_at = NOW()
		WHERE order_item_id = $2
		RETURNING `+reportColumns, reason, orderItemID)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// GetByOrderItem fetches the report for one order item.
func (r *Repository) GetByOrderItem(ctx context.Context, orderItemID int64) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM discrepancy_reports WHERE order_item_id = $1`, orderItemID)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// List returns reports newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Report, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+`
		FROM discrepancy_reports
		WHERE ($1 = 0 OR order_id = $1)
		  AND ($2 = '' OR classification = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5`,
		filter.OrderID, string(filter.Classification), nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
