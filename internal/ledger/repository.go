package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/backoffice/internal/platform/db"
)

// Repository persists ledger rows and the movements journal in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn with a TxPort bound to a fresh transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxPort(tx))
	})
}

// NewTxPort wraps an existing pgx transaction. The order engine uses this
// to mutate the ledger inside its own transaction.
func NewTxPort(tx pgx.Tx) TxPort {
	return &txPort{tx: tx}
}

type txPort struct {
	tx pgx.Tx
}

func (p *txPort) GetLevelForUpdate(ctx context.Context, productID, locationID int64) (Level, error) {
	var l Level
	err := p.tx.QueryRow(ctx, `
		SELECT product_id, location_id, stock, reserved_quantity, min_stock_level, reorder_point, updated_at
		FROM inventory_levels
		WHERE product_id = $1 AND location_id = $2
		FOR UPDATE`, productID, locationID).
		Scan(&l.ProductID, &l.LocationID, &l.Stock, &l.Reserved, &l.MinStockLevel, &l.ReorderPoint, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Level{ProductID: productID, LocationID: locationID}, ErrLevelNotFound
	}
	return l, err
}

func (p *txPort) UpsertLevel(ctx context.Context, level Level) error {
	_, err := p.tx.Exec(ctx, `
		INSERT INTO inventory_levels (product_id, location_id, stock, reserved_quantity, min_stock_level, reorder_point, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, location_id) DO UPDATE
		SET stock = EXCLUDED.stock,
		    reserved_quantity = EXCLUDED.reserved_quantity,
		    updated_at = EXCLUDED.updated_at`,
		level.ProductID, level.LocationID, level.Stock, level.Reserved,
		level.MinStockLevel, level.ReorderPoint, level.UpdatedAt)
	return err
}

func (p *txPort) InsertMovement(ctx context.Context, m Movement) error {
	_, err := p.tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, location_id, kind, qty, ref_module, ref_id, note, actor_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ProductID, m.LocationID, m.Kind, m.Qty, m.RefModule, m.RefID, m.Note, m.ActorID, m.PostedAt)
	return err
}

// GetLevel reads one ledger row without locking. A missing row reads as a
// zero level.
func (r *Repository) GetLevel(ctx context.Context, productID, locationID int64) (Level, error) {
	var l Level
	err := r.pool.QueryRow(ctx, `
		SELECT product_id, location_id, stock, reserved_quantity, min_stock_level, reorder_point, updated_at
		FROM inventory_levels
		WHERE product_id = $1 AND location_id = $2`, productID, locationID).
		Scan(&l.ProductID, &l.LocationID, &l.Stock, &l.Reserved, &l.MinStockLevel, &l.ReorderPoint, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Level{ProductID: productID, LocationID: locationID}, nil
	}
	return l, err
}

// LevelsAt returns all ledger rows for one location.
func (r *Repository) LevelsAt(ctx context.Context, locationID int64) ([]Level, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, location_id, stock, reserved_quantity, min_stock_level, reorder_point, updated_at
		FROM inventory_levels
		WHERE location_id = $1
		ORDER BY product_id`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ProductID, &l.LocationID, &l.Stock, &l.Reserved, &l.MinStockLevel, &l.ReorderPoint, &l.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// Movements lists journal entries, newest first.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, location_id, kind, qty, ref_module, ref_id, note, actor_id, posted_at
		FROM stock_movements
		WHERE ($1 = 0 OR product_id = $1)
		  AND ($2 = 0 OR location_id = $2)
		  AND ($3::timestamptz IS NULL OR posted_at >= $3)
		  AND ($4::timestamptz IS NULL OR posted_at < $4)
		ORDER BY posted_at DESC, id DESC
		LIMIT $5`,
		filter.ProductID, filter.LocationID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.LocationID, &m.Kind, &m.Qty, &m.RefModule, &m.RefID, &m.Note, &m.ActorID, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// LowStock returns rows whose free stock has fallen to the reorder point.
func (r *Repository) LowStock(ctx context.Context) ([]Level, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, location_id, stock, reserved_quantity, min_stock_level, reorder_point, updated_at
		FROM inventory_levels
		WHERE reorder_point > 0 AND stock - reserved_quantity <= reorder_point
		ORDER BY location_id, product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ProductID, &l.LocationID, &l.Stock, &l.Reserved, &l.MinStockLevel, &l.ReorderPoint, &l.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
