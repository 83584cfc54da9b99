package service

import (
	"context"
	"testing"

	"kirato/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireCredits_AllowsAndDebits(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	walletService := NewWalletService(db, cfg)
	svc := NewEntitlementService(walletService, nil, cfg)
	ctx := context.Background()

	_, err := walletService.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	decision, err := svc.RequireCredits(ctx, 1, 30, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(30), decision.Required)
	assert.Equal(t, int64(20), decision.Available)
}

func TestRequireCredits_DeniesWithShortfall(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	walletService := NewWalletService(db, cfg)
	svc := NewEntitlementService(walletService, nil, cfg)
	ctx := context.Background()

	_, err := walletService.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	decision, err := svc.RequireCredits(ctx, 1, 120, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(120), decision.Required)
	assert.Equal(t, int64(50), decision.Available)

	// 拒绝不产生扣减
	balance, err := walletService.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestRequireCredits_RejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewEntitlementService(NewWalletService(db, cfg), nil, cfg)

	_, err := svc.RequireCredits(context.Background(), 1, 0, model.ReasonFeatureUsage, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
