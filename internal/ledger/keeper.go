package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-retail/backoffice/internal/uom"
)

// TxPort is the transactional surface a caller must supply. The ledger's own
// repository implements it over a pgx transaction; the order engine hands in
// a port bound to its own transaction so stock mutations and the order state
// change commit or roll back together.
type TxPort interface {
	// GetLevelForUpdate locks and returns the row, or ErrLevelNotFound.
	GetLevelForUpdate(ctx context.Context, productID, locationID int64) (Level, error)
	UpsertLevel(ctx context.Context, level Level) error
	InsertMovement(ctx context.Context, movement Movement) error
}

// Ref ties a movement back to the business document that caused it.
type Ref struct {
	Module  string
	ID      string
	Note    string
	ActorID int64
}

// Keeper applies ledger mutations through a TxPort. It is stateless; all
// serialization comes from the row lock taken by GetLevelForUpdate.
type Keeper struct {
	clock func() time.Time
}

// NewKeeper constructs a Keeper.
func NewKeeper() *Keeper {
	return &Keeper{clock: func() time.Time { return time.Now().UTC() }}
}

func (k *Keeper) now() time.Time {
	if k.clock != nil {
		return k.clock()
	}
	return time.Now().UTC()
}

func (k *Keeper) level(ctx context.Context, tx TxPort, productID, locationID int64) (Level, error) {
	level, err := tx.GetLevelForUpdate(ctx, productID, locationID)
	if err != nil {
		if errors.Is(err, ErrLevelNotFound) {
			return Level{ProductID: productID, LocationID: locationID}, nil
		}
		return Level{}, err
	}
	return level, nil
}

func (k *Keeper) journal(ctx context.Context, tx TxPort, level Level, kind MovementKind, qty int64, ref Ref) error {
	level.UpdatedAt = k.now()
	if err := tx.UpsertLevel(ctx, level); err != nil {
		return fmt.Errorf("ledger: upsert level: %w", err)
	}
	return tx.InsertMovement(ctx, Movement{
		ProductID:  level.ProductID,
		LocationID: level.LocationID,
		Kind:       kind,
		Qty:        qty,
		RefModule:  ref.Module,
		RefID:      ref.ID,
		Note:       ref.Note,
		ActorID:    ref.ActorID,
		PostedAt:   k.now(),
	})
}

// Reserve marks qty base units as claimed. It does not change stock; the
// reservation is advisory and informs quantity capping.
func (k *Keeper) Reserve(ctx context.Context, tx TxPort, productID, locationID, qty int64, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, err := k.level(ctx, tx, productID, locationID)
	if err != nil {
		return err
	}
	if qty > level.Stock {
		return fmt.Errorf("%w: want %d, have %d", ErrInsufficientStock, qty, level.Stock)
	}
	level.Reserved += qty
	return k.journal(ctx, tx, level, MovementReserve, qty, ref)
}

// Release returns up to qty base units of reservation to the free pool.
// Reserved is floored at zero.
func (k *Keeper) Release(ctx context.Context, tx TxPort, productID, locationID, qty int64, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, err := k.level(ctx, tx, productID, locationID)
	if err != nil {
		return err
	}
	level.Reserved -= qty
	if level.Reserved < 0 {
		level.Reserved = 0
	}
	return k.journal(ctx, tx, level, MovementRelease, qty, ref)
}

// Decrement durably removes qty base units of stock at ship time and
// consumes any matching reservation. A failing decrement after capping
// means a lost-update race; the caller must abort the whole transition.
func (k *Keeper) Decrement(ctx context.Context, tx TxPort, productID, locationID, qty int64, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, err := k.level(ctx, tx, productID, locationID)
	if err != nil {
		return err
	}
	if qty > level.Stock {
		return fmt.Errorf("%w: want %d, have %d", ErrInsufficientStock, qty, level.Stock)
	}
	level.Stock -= qty
	level.Reserved -= qty
	if level.Reserved < 0 {
		level.Reserved = 0
	}
	return k.journal(ctx, tx, level, MovementOut, qty, ref)
}

// Increment adds qty base units of stock, used when a store confirms
// receipt or a cancelled order releases stock back.
func (k *Keeper) Increment(ctx context.Context, tx TxPort, productID, locationID, qty int64, ref Ref) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, err := k.level(ctx, tx, productID, locationID)
	if err != nil {
		return err
	}
	level.Stock += qty
	return k.journal(ctx, tx, level, MovementIn, qty, ref)
}

// Cap returns the package quantity that can actually be fulfilled:
// min(requested, whole packages currently in stock). It takes the row lock
// so the capped value cannot be invalidated by a concurrent decrement
// inside the same transaction scope.
func (k *Keeper) Cap(ctx context.Context, tx TxPort, requested, productID, locationID, factor int64) (int64, error) {
	level, err := k.level(ctx, tx, productID, locationID)
	if err != nil {
		return 0, err
	}
	deliverable := uom.ToPackages(level.Stock, factor)
	if requested <= deliverable {
		return requested, nil
	}
	return deliverable, nil
}
