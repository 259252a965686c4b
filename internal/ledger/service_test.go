package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	levels    map[string]Level
	movements []Movement
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{levels: make(map[string]Level)}
}

func levelKey(productID, locationID int64) string {
	return fmt.Sprintf("%d:%d", productID, locationID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxPort) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetLevel(ctx context.Context, productID, locationID int64) (Level, error) {
	if l, ok := r.levels[levelKey(productID, locationID)]; ok {
		return l, nil
	}
	return Level{ProductID: productID, LocationID: locationID}, nil
}

func (r *memoryRepo) LevelsAt(ctx context.Context, locationID int64) ([]Level, error) {
	var out []Level
	for _, l := range r.levels {
		if l.LocationID == locationID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	out := make([]Movement, len(r.movements))
	copy(out, r.movements)
	return out, nil
}

func (r *memoryRepo) LowStock(ctx context.Context) ([]Level, error) {
	var out []Level
	for _, l := range r.levels {
		if l.ReorderPoint > 0 && l.Stock-l.Reserved <= l.ReorderPoint {
			out = append(out, l)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetLevelForUpdate(ctx context.Context, productID, locationID int64) (Level, error) {
	if l, ok := tx.repo.levels[levelKey(productID, locationID)]; ok {
		return l, nil
	}
	return Level{ProductID: productID, LocationID: locationID}, ErrLevelNotFound
}

func (tx *memoryTx) UpsertLevel(ctx context.Context, level Level) error {
	tx.repo.levels[levelKey(level.ProductID, level.LocationID)] = level
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func seed(t *testing.T, repo *memoryRepo, productID, locationID, stock int64) {
	t.Helper()
	repo.levels[levelKey(productID, locationID)] = Level{
		ProductID: productID, LocationID: locationID, Stock: stock,
	}
}

func TestKeeperReserve(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()
	seed(t, repo, 1, 10, 100)

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		return keeper.Reserve(ctx, tx, 1, 10, 60, Ref{Module: "orders", ID: "TO-1"})
	})
	require.NoError(t, err)

	level, err := repo.GetLevel(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 100, level.Stock)
	require.EqualValues(t, 60, level.Reserved)
	require.EqualValues(t, 40, level.Available())

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		return keeper.Reserve(ctx, tx, 1, 10, 101, Ref{})
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestKeeperDecrementConsumesReservation(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()
	seed(t, repo, 1, 10, 100)

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := keeper.Reserve(ctx, tx, 1, 10, 96, Ref{}); err != nil {
			return err
		}
		return keeper.Decrement(ctx, tx, 1, 10, 96, Ref{})
	})
	require.NoError(t, err)

	level, _ := repo.GetLevel(ctx, 1, 10)
	require.EqualValues(t, 4, level.Stock)
	require.EqualValues(t, 0, level.Reserved)
}

func TestKeeperDecrementOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()
	seed(t, repo, 1, 10, 50)

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		return keeper.Decrement(ctx, tx, 1, 10, 51, Ref{})
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	level, _ := repo.GetLevel(ctx, 1, 10)
	require.EqualValues(t, 50, level.Stock)
}

func TestKeeperReleaseFloorsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()
	seed(t, repo, 1, 10, 30)

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := keeper.Reserve(ctx, tx, 1, 10, 10, Ref{}); err != nil {
			return err
		}
		return keeper.Release(ctx, tx, 1, 10, 25, Ref{})
	})
	require.NoError(t, err)

	level, _ := repo.GetLevel(ctx, 1, 10)
	require.EqualValues(t, 0, level.Reserved)
}

func TestKeeperIncrementCreatesLevel(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		return keeper.Increment(ctx, tx, 7, 3, 72, Ref{Module: "orders"})
	})
	require.NoError(t, err)

	level, _ := repo.GetLevel(ctx, 7, 3)
	require.EqualValues(t, 72, level.Stock)
}

func TestKeeperCap(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()
	seed(t, repo, 1, 10, 100) // 8 whole packages of 12

	var allowed int64
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		var err error
		allowed, err = keeper.Cap(ctx, tx, 10, 1, 10, 12)
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 8, allowed)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		var err error
		allowed, err = keeper.Cap(ctx, tx, 5, 1, 10, 12)
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 5, allowed)
}

func TestAdjust(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, NewKeeper(), nil, nil)
	ctx := context.Background()

	level, err := svc.Adjust(ctx, AdjustmentInput{ProductID: 1, LocationID: 10, Qty: 40, Note: "count"})
	require.NoError(t, err)
	require.EqualValues(t, 40, level.Stock)

	_, err = svc.Adjust(ctx, AdjustmentInput{ProductID: 1, LocationID: 10, Qty: -60, Note: "count"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = svc.Adjust(ctx, AdjustmentInput{ProductID: 1, LocationID: 10, Qty: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMovementsJournaled(t *testing.T) {
	repo := newMemoryRepo()
	keeper := NewKeeper()
	ctx := context.Background()
	seed(t, repo, 1, 10, 100)

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxPort) error {
		if err := keeper.Reserve(ctx, tx, 1, 10, 12, Ref{Module: "orders", ID: "TO-9"}); err != nil {
			return err
		}
		return keeper.Decrement(ctx, tx, 1, 10, 12, Ref{Module: "orders", ID: "TO-9"})
	})
	require.NoError(t, err)

	require.Len(t, repo.movements, 2)
	require.Equal(t, MovementReserve, repo.movements[0].Kind)
	require.Equal(t, MovementOut, repo.movements[1].Kind)
	require.Equal(t, "TO-9", repo.movements[1].RefID)
}
