package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func TestIntentStoreRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store, err := NewIntentStore(kv, 30*time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	intent := &Intent{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Items:  []types.LineItem{{CartItemID: "item-1", Name: "Hat", Price: decimal.RequireFromString("12.50"), Quantity: 2}},
		Totals: orders.Totals{Total: decimal.RequireFromString("25.00")},
	}
	require.NoError(t, store.Save(ctx, intent))
	assert.Equal(t, 30*time.Minute, store.SessionWindow())
	assert.Equal(t, 30*time.Minute+completionGrace, kv.ttls[kv.CheckoutIntentKey(intent.ID.String())],
		"intent must outlive the payable session")

	loaded, err := store.Load(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.UserID, loaded.UserID)
	assert.True(t, loaded.Totals.Total.Equal(intent.Totals.Total))

	require.NoError(t, store.Delete(ctx, intent.ID))
	_, err = store.Load(ctx, intent.ID)
	assert.ErrorIs(t, err, errIntentNotFound)
}

func TestIntentStoreClaimOnce(t *testing.T) {
	kv := newFakeKV()
	store, err := NewIntentStore(kv, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()

	first, err := store.Claim(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, kv.ttls[kv.CheckoutClaimKey(id.String())], time.Minute+completionGrace)
	second, err := store.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	require.NoError(t, store.Release(ctx, id))
	third, err := store.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, third)
}

func TestNewIntentStoreValidates(t *testing.T) {
	_, err := NewIntentStore(nil, time.Minute)
	assert.Error(t, err)
	_, err = NewIntentStore(newFakeKV(), 0)
	assert.Error(t, err)
}
