package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubEnqueuer struct {
	calls []int64
	err   error
}

func (s *stubEnqueuer) EnqueueStockAlert(_ context.Context, productID int64, _, _ string) error {
	s.calls = append(s.calls, productID)
	return s.err
}

func TestAlerterEnqueues(t *testing.T) {
	enq := &stubEnqueuer{}
	a := NewAlerter(enq, slog.New(slog.NewTextHandler(io.Discard, nil)))

	a.StockBelowReorder(context.Background(), 42, decimal.NewFromInt(3), decimal.NewFromInt(10))
	assert.Equal(t, []int64{42}, enq.calls)
}

func TestAlerterSurvivesEnqueueFailure(t *testing.T) {
	enq := &stubEnqueuer{err: errors.New("redis down")}
	a := NewAlerter(enq, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotPanics(t, func() {
		a.StockBelowReorder(context.Background(), 42, decimal.NewFromInt(3), decimal.NewFromInt(10))
	})
}

func TestAlerterWithoutQueue(t *testing.T) {
	a := NewAlerter(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotPanics(t, func() {
		a.StockBelowReorder(context.Background(), 7, decimal.Zero, decimal.NewFromInt(5))
	})
}
