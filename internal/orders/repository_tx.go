package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-retail/backoffice/internal/ledger"
)

type txRepository struct {
	tx     pgx.Tx
	ledger ledger.TxPort
}

func (t *txRepository) Ledger() ledger.TxPort { return t.ledger }

// NextCode reserves the next transfer order code, e.g. TO-20260901-0042.
func (t *txRepository) NextCode(ctx context.Context) (string, error) {
	var code string
	err := t.tx.QueryRow(ctx,
		`SELECT 'TO-' || to_char(now(), 'YYYYMMDD') || '-' || lpad(nextval('order_code_seq')::text, 4, '0')`,
	).Scan(&code)
	if err != nil {
		return "", fmt.Errorf("orders: next code: %w", err)
	}
	return code, nil
}

func (t *txRepository) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (code, source_location_id, target_location_id, status,
			expected_delivery, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id`,
		order.Code, order.SourceLocationID, order.TargetLocationID, order.Status,
		order.ExpectedDelivery, order.Notes, order.CreatedBy,
	).Scan(&id)
	return id, err
}

func (t *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price,
			package_quantity, auto_adjusted, subtotal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
		item.PackageQuantity, item.AutoAdjusted, item.Subtotal,
	).Scan(&id)
	return id, err
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	order.Items, err = scanItems(rows)
	if err != nil {
		return nil, err
	}
	// Lock ledger rows in a stable order so two transitions touching the
	// same products never deadlock.
	sort.Slice(order.Items, func(i, j int) bool { return order.Items[i].ProductID < order.Items[j].ProductID })
	return &order, nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, from, to Status, fields map[string]any) error {
	set := []string{"status = $3", "updated_at = now()"}
	args := []any{id, from, to}
	for _, col := range sortedKeys(fields) {
		args = append(args, fields[col])
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE orders SET `+strings.Join(set, ", ")+` WHERE id = $1 AND status = $2`,
		args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (t *txRepository) UpdateOrderFields(ctx context.Context, id int64, fields map[string]any) error {
	set := []string{"updated_at = now()"}
	args := []any{id}
	for _, col := range sortedKeys(fields) {
		args = append(args, fields[col])
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	tag, err := t.tx.Exec(ctx, `UPDATE orders SET `+strings.Join(set, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) UpdateItemPackageQty(ctx context.Context, itemID, qty int64, autoAdjusted bool, subtotal float64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE order_items
		SET package_quantity = $2, auto_adjusted = $3, subtotal = $4, updated_at = now()
		WHERE id = $1`,
		itemID, qty, autoAdjusted, subtotal)
	return err
}

func (t *txRepository) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, itemID)
	return err
}

func (t *txRepository) SetItemReceived(ctx context.Context, itemID, qty int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE order_items
		SET received_quantity = $2, updated_at = now()
		WHERE id = $1 AND received_quantity IS NULL`,
		itemID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepository) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
