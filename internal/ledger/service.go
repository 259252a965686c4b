package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-retail/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error
	GetLevel(ctx context.Context, productID, locationID int64) (Level, error)
	LevelsAt(ctx context.Context, locationID int64) ([]Level, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	LowStock(ctx context.Context) ([]Level, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes ledger reads and manual adjustments. Order-driven
// mutations do not pass through here; the order engine drives the Keeper
// inside its own transaction.
type Service struct {
	repo        RepositoryPort
	keeper      *Keeper
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService builds Service.
func NewService(repo RepositoryPort, keeper *Keeper, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, keeper: keeper, audit: audit, idempotency: idem}
}

// GetAvailable returns current stock in base units.
func (s *Service) GetAvailable(ctx context.Context, productID, locationID int64) (int64, error) {
	level, err := s.repo.GetLevel(ctx, productID, locationID)
	if err != nil {
		return 0, err
	}
	return level.Stock, nil
}

// GetLevel returns the full ledger row.
func (s *Service) GetLevel(ctx context.Context, productID, locationID int64) (Level, error) {
	return s.repo.GetLevel(ctx, productID, locationID)
}

// Movements lists journal entries.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 && filter.LocationID == 0 {
		return nil, errors.New("ledger: product or location filter required")
	}
	return s.repo.Movements(ctx, filter)
}

// LowStock returns rows at or below their reorder point.
func (s *Service) LowStock(ctx context.Context) ([]Level, error) {
	return s.repo.LowStock(ctx)
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	ProductID  int64
	LocationID int64
	Qty        int64 // base units, signed
	Note       string
	ActorID    int64
	RequestKey string // caller-supplied idempotency key, optional
}

// Adjust applies a manual correction outside the order flow, e.g. after a
// physical count. Negative adjustments may not overdraw the row.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Level, error) {
	if input.Qty == 0 {
		return Level{}, ErrInvalidQuantity
	}
	if input.ProductID == 0 || input.LocationID == 0 {
		return Level{}, errors.New("ledger: product and location required")
	}

	insertedKey := false
	if s.idempotency != nil && input.RequestKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.RequestKey, "ledger"); err != nil {
			return Level{}, err
		}
		insertedKey = true
	}

	var result Level
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		level, err := tx.GetLevelForUpdate(ctx, input.ProductID, input.LocationID)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		newStock := level.Stock + input.Qty
		if newStock < 0 {
			return fmt.Errorf("%w: adjust by %d, have %d", ErrInsufficientStock, input.Qty, level.Stock)
		}
		level.ProductID = input.ProductID
		level.LocationID = input.LocationID
		level.Stock = newStock
		level.UpdatedAt = s.keeper.now()
		if err := tx.UpsertLevel(ctx, level); err != nil {
			return err
		}
		result = level
		return tx.InsertMovement(ctx, Movement{
			ProductID:  input.ProductID,
			LocationID: input.LocationID,
			Kind:       MovementAdjust,
			Qty:        input.Qty,
			RefModule:  "ledger",
			RefID:      input.RequestKey,
			Note:       input.Note,
			ActorID:    input.ActorID,
			PostedAt:   s.keeper.now(),
		})
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.RequestKey)
		}
		return Level{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "ledger:adjust",
			Entity:   "inventory_level",
			EntityID: fmt.Sprintf("%d:%d", input.ProductID, input.LocationID),
			Meta: map[string]any{
				"qty":  input.Qty,
				"note": input.Note,
			},
		})
	}
	return result, nil
}
