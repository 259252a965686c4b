package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// reorderAlertsKey caches the latest scan result for dashboard reads.
const reorderAlertsKey = "backoffice:reorder:alerts"

// ReorderAlert is one ledger row that needs replenishment.
type ReorderAlert struct {
	ProductID    int64     `json:"product_id"`
	ProductCode  string    `json:"product_code"`
	ProductName  string    `json:"product_name"`
	LocationID   int64     `json:"location_id"`
	LocationCode string    `json:"location_code"`
	Stock        int64     `json:"stock"`
	Reserved     int64     `json:"reserved"`
	ReorderPoint int64     `json:"reorder_point"`
	ScannedAt    time.Time `json:"scanned_at"`
}

// ReorderScanJob flags products whose free stock fell to the reorder point.
type ReorderScanJob struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Logger *slog.Logger
	clock  func() time.Time
}

// NewReorderScanJob initialises the scan handler.
func NewReorderScanJob(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *ReorderScanJob {
	return &ReorderScanJob{
		Pool:   pool,
		Redis:  rdb,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the scan.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("reorder scan: handler not configured")
	}
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger().With(slog.Int64("location_id", payload.LocationID))
	logger.Info("starting reorder scan")

	alerts, err := j.scan(ctx, payload.LocationID, start)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, a := range alerts {
		logger.Warn("stock at reorder point",
			slog.String("product", a.ProductCode),
			slog.String("location", a.LocationCode),
			slog.Int64("stock", a.Stock),
			slog.Int64("reserved", a.Reserved),
			slog.Int64("reorder_point", a.ReorderPoint),
		)
	}

	if j.Redis != nil {
		if data, err := json.Marshal(alerts); err == nil {
			if err := j.Redis.Set(ctx, reorderAlertsKey, data, time.Hour).Err(); err != nil {
				logger.Warn("cache alerts", slog.Any("error", err))
			}
		}
	}

	logger.Info("completed reorder scan",
		slog.Int("alerts", len(alerts)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ReorderScanJob) scan(ctx context.Context, locationID int64, now time.Time) ([]ReorderAlert, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT il.product_id, p.code, p.name, il.location_id, l.code,
		       il.stock, il.reserved_quantity, il.reorder_point
		FROM inventory_levels il
		JOIN products p ON p.id = il.product_id
		JOIN locations l ON l.id = il.location_id
		WHERE il.reorder_point > 0
		  AND il.stock - il.reserved_quantity <= il.reorder_point
		  AND ($1 = 0 OR il.location_id = $1)
		ORDER BY il.location_id, p.code`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]ReorderAlert, 0)
	for rows.Next() {
		a := ReorderAlert{ScannedAt: now}
		if err := rows.Scan(&a.ProductID, &a.ProductCode, &a.ProductName, &a.LocationID,
			&a.LocationCode, &a.Stock, &a.Reserved, &a.ReorderPoint); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (j *ReorderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReorderScan))
	}
	return slog.Default().With(slog.String("job", TaskReorderScan))
}

func (j *ReorderScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
