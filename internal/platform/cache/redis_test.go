package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var out payload
	require.ErrorIs(t, store.Get(ctx, "reports:sales", &out), ErrMiss)

	require.NoError(t, store.Set(ctx, "reports:sales", payload{Name: "june", Count: 3}))
	require.NoError(t, store.Get(ctx, "reports:sales", &out))
	require.Equal(t, "june", out.Name)
	require.Equal(t, 3, out.Count)

	require.NoError(t, store.Invalidate(ctx, "reports:sales"))
	require.ErrorIs(t, store.Get(ctx, "reports:sales", &out), ErrMiss)
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *Store
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", payload{}))
	require.NoError(t, store.Invalidate(ctx, "k"))

	var out payload
	require.ErrorIs(t, store.Get(ctx, "k", &out), ErrMiss)
}
