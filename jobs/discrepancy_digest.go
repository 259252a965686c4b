package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DiscrepancyDigestJob summarises recent shipped-vs-received mismatches per
// store so operations can spot problem routes.
type DiscrepancyDigestJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewDiscrepancyDigestJob initialises the digest handler.
func NewDiscrepancyDigestJob(pool *pgxpool.Pool, logger *slog.Logger) *DiscrepancyDigestJob {
	return &DiscrepancyDigestJob{
		Pool:   pool,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

type digestRow struct {
	LocationID   int64
	LocationCode string
	Shortages    int64
	Excesses     int64
	NetPackages  int64
	Unexplained  int64
}

// Handle executes the digest.
func (j *DiscrepancyDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("discrepancy digest: handler not configured")
	}
	var payload DiscrepancyDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}

	start := j.now()
	since := start.Add(-time.Duration(payload.WindowHours) * time.Hour)
	logger := j.logger().With(slog.Int("window_hours", payload.WindowHours))
	logger.Info("starting discrepancy digest")

	rows, err := j.Pool.Query(ctx, `
		SELECT o.target_location_id, l.code,
		       COUNT(*) FILTER (WHERE dr.classification = 'shortage'),
		       COUNT(*) FILTER (WHERE dr.classification = 'excess'),
		       COALESCE(SUM(dr.difference), 0),
		       COUNT(*) FILTER (WHERE dr.reason IS NULL)
		FROM discrepancy_reports dr
		JOIN orders o ON o.id = dr.order_id
		JOIN locations l ON l.id = o.target_location_id
		WHERE dr.created_at >= $1
		GROUP BY o.target_location_id, l.code
		ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		logger.Error("digest query failed", slog.Any("error", err))
		return err
	}
	defer rows.Close()

	var stores int
	for rows.Next() {
		var row digestRow
		if err := rows.Scan(&row.LocationID, &row.LocationCode, &row.Shortages,
			&row.Excesses, &row.NetPackages, &row.Unexplained); err != nil {
			return err
		}
		stores++
		logger.Warn("store discrepancy summary",
			slog.String("store", row.LocationCode),
			slog.Int64("shortages", row.Shortages),
			slog.Int64("excesses", row.Excesses),
			slog.Int64("net_packages", row.NetPackages),
			slog.Int64("without_reason", row.Unexplained),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	logger.Info("completed discrepancy digest",
		slog.Int("stores", stores),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *DiscrepancyDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDiscrepancyDigest))
	}
	return slog.Default().With(slog.String("job", TaskDiscrepancyDigest))
}

func (j *DiscrepancyDigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
