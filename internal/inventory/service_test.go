package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingAlerter struct {
	productIDs []int64
}

func (a *recordingAlerter) StockBelowReorder(ctx context.Context, productID int64, current, reorder decimal.Decimal) {
	a.productIDs = append(a.productIDs, productID)
}

func TestServiceApplyMovement(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "10", "20")
	alerter := &recordingAlerter{}
	svc := NewService(repo, NewLedger(), nil, alerter, nil)
	ctx := context.Background()

	result, err := svc.ApplyMovement(ctx, MovementInput{ProductID: 1, Quantity: dec("5"), Type: MovementIn})
	require.NoError(t, err)
	require.True(t, result.NewBalance.Equal(dec("15")))

	// 15 <= reorder 20, the alert fires.
	require.Equal(t, []int64{1}, alerter.productIDs)

	result, err = svc.ApplyMovement(ctx, MovementInput{ProductID: 1, Quantity: dec("15"), Type: MovementIn})
	require.NoError(t, err)
	require.True(t, result.NewBalance.Equal(dec("30")))
	require.Len(t, alerter.productIDs, 1)
}

func TestServiceApplyMovementRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "10", "0")
	svc := NewService(repo, NewLedger(), nil, nil, nil)

	_, err := svc.ApplyMovement(context.Background(), MovementInput{ProductID: 1, Quantity: dec("11"), Type: MovementOut})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, repo.stocks[1].level.CurrentStock.Equal(dec("10")))
	require.Empty(t, repo.movements)
}

func TestServiceStockMovementsOrder(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "100", "0")
	repo.seed(2, "100", "0")
	svc := NewService(repo, NewLedger(), nil, nil, nil)
	ctx := context.Background()

	for _, qty := range []string{"1", "2", "3"} {
		_, err := svc.ApplyMovement(ctx, MovementInput{ProductID: 1, Quantity: dec(qty), Type: MovementOut})
		require.NoError(t, err)
	}
	_, err := svc.ApplyMovement(ctx, MovementInput{ProductID: 2, Quantity: dec("9"), Type: MovementOut})
	require.NoError(t, err)

	movements, err := svc.StockMovements(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	// Most recent first.
	require.True(t, movements[0].Quantity.Equal(dec("3")))
	require.True(t, movements[1].Quantity.Equal(dec("2")))
}

func TestServiceLowStockScenario(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, "10", "20")
	svc := NewService(repo, NewLedger(), nil, nil, nil)
	ctx := context.Background()

	low, err := svc.LowStockProducts(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.True(t, low[0].Deficit.Equal(dec("10")))

	// Reads are idempotent.
	again, err := svc.LowStockProducts(ctx)
	require.NoError(t, err)
	require.Equal(t, low, again)

	_, err = svc.ApplyMovement(ctx, MovementInput{ProductID: 1, Quantity: dec("15"), Type: MovementIn})
	require.NoError(t, err)

	low, err = svc.LowStockProducts(ctx)
	require.NoError(t, err)
	require.Empty(t, low)
}
