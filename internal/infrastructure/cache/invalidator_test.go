package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Invalidate(context.Context, string) (int, error) {
	return 0, errors.New("redis down")
}

func TestPrefixFromPayload(t *testing.T) {
	assert.Equal(t, "stock-analytics:", PrefixFromPayload(""))
	assert.Equal(t, "stock-analytics:", PrefixFromPayload("  "))
	assert.Equal(t, "stock-analytics:page-1", PrefixFromPayload("page-1"))
	assert.Equal(t, "stock-analytics:insights", PrefixFromPayload("stock-analytics:insights"))
}

func TestInvalidator_Handle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "stock-analytics:page-1:limit-25:q-:mode-full", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "stock-analytics:insights:critical", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "session:abc", []byte("v"), time.Minute))

	inv := NewInvalidator(nil, store)

	var got []int
	inv.AddListener(func(prefix string, removed int) { got = append(got, removed) })
	inv.AddListener(func(string, int) { panic("listener bug") })

	inv.handle(ctx, "page-")
	inv.handle(ctx, "")

	assert.Equal(t, []int{1, 1}, got)
	assert.Equal(t, 1, store.Len(), "keys outside the namespace survive")
}

func TestInvalidator_HandleStoreFailure(t *testing.T) {
	inv := NewInvalidator(nil, failingStore{})
	called := false
	inv.AddListener(func(string, int) { called = true })

	assert.NotPanics(t, func() { inv.handle(context.Background(), "") })
	assert.False(t, called)
}

func TestInvalidator_StartRequiresPool(t *testing.T) {
	inv := NewInvalidator(nil, NewMemoryStore())
	assert.Error(t, inv.Start(context.Background()))
	inv.Stop()
}
