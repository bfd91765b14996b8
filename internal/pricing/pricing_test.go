package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/BatmanBruc/club-membership-bot/store"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	c := NewCatalog(mem, mem)

	q := c.Quote(ctx, 7, types.PlanMonthly)
	assert.Equal(t, 500, q.Price)
	assert.Equal(t, 30, q.Days)
	assert.False(t, q.Discounted)

	require.NoError(t, mem.SetSetting(ctx, KeyPriceYearly, " 4200 "))
	assert.Equal(t, 4200, c.Quote(ctx, 7, types.PlanYearly).Price)

	require.NoError(t, mem.SetSetting(ctx, KeyPriceMonthly, "cheap"))
	assert.Equal(t, 500, c.Quote(ctx, 7, types.PlanMonthly).Price)
}

func TestOldMemberDiscount(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	c := NewCatalog(mem, mem)
	require.NoError(t, mem.ConfirmOldMember(ctx, types.ConfirmedOldMember{UserID: 7, ConfirmedBy: 1, ConfirmedAt: time.Now()}))

	monthly, yearly := c.Both(ctx, 7)
	assert.Equal(t, 300, monthly.Price)
	assert.Equal(t, 3000, yearly.Price)
	assert.True(t, monthly.Discounted)
	assert.Equal(t, 365, yearly.Days)

	monthly, _ = c.Both(ctx, 8)
	assert.Equal(t, 500, monthly.Price)
}

func TestMethods(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	c := NewCatalog(mem, mem)

	assert.Equal(t, []string{"UPI", "Bank Transfer"}, c.Methods(ctx))
	require.NoError(t, mem.SetSetting(ctx, KeyPaymentMethods, "Cash, ,PayPal"))
	methods := c.Methods(ctx)
	assert.Equal(t, []string{"Cash", "PayPal"}, methods)

	m, ok := MatchMethod(methods, " paypal ")
	assert.True(t, ok)
	assert.Equal(t, "PayPal", m)
	_, ok = MatchMethod(methods, "Bitcoin")
	assert.False(t, ok)
}
