package service

import (
	"context"
	"fmt"
	"testing"

	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateWallet_WelcomeBonusOnce(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewWalletService(db, cfg)
	ctx := context.Background()

	wallet, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)

	// 再次访问不重复发放
	wallet, err = svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)

	list, total, err := svc.ListLedger(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.ReasonWelcomeBonus, list[0].Reason)
}

func TestSpend_InsufficientBalanceLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	// 余额 50，消费 80 被拒且余额不变、不产生流水
	result, err := svc.Spend(ctx, 1, 80, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, int64(50), result.Balance)

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	_, total, err := svc.ListLedger(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total) // 只有欢迎奖励那一条
}

func TestSpend_ExactBalanceDrainsToZero(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	result, err := svc.Spend(ctx, 1, 50, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int64(0), result.Balance)

	// 再花 1 分也不行
	result, err = svc.Spend(ctx, 1, 1, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	assert.False(t, result.OK)
}

func TestSpend_RejectsInvalidAmount(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.Spend(ctx, 1, 0, model.ReasonFeatureUsage, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Spend(ctx, 1, -10, model.ReasonFeatureUsage, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_BalanceMatchesTransactionSum(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Grant(ctx, 1, 200, model.ReasonSubscriptionRenewal, nil))
	result, err := svc.Spend(ctx, 1, 30, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.NoError(t, svc.Refund(ctx, 1, 10, model.ReasonOrderRefund, nil))

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50+200-30+10), balance)

	sum, err := repository.NewTransactionRepository(db).SumAmountByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, balance, sum)
}

func TestLedger_TrimsToCap(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.Business.LedgerCap = 5
	svc := NewWalletService(db, cfg)
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, svc.Grant(ctx, 1, 1, model.ReasonFeatureUsage,
			map[string]string{"i": fmt.Sprint(i)}))
	}

	list, total, err := svc.ListLedger(ctx, 1, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	// 留下的必须是最新的 5 条
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1].ID, list[i].ID)
	}

	// 裁剪不回写余额
	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)
}

func TestLedger_OtherUsersUnaffectedByTrim(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.Business.LedgerCap = 3
	svc := NewWalletService(db, cfg)
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)
	_, err = svc.GetOrCreateWallet(ctx, 2)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, svc.Grant(ctx, 1, 1, model.ReasonFeatureUsage, nil))
	}

	_, total, err := svc.ListLedger(ctx, 2, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAdjust_NegativeDeltaRespectsBalanceFloor(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Adjust(ctx, 1, -20, "manual_correction"))

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	// 把余额调成负数被拒绝
	err = svc.Adjust(ctx, 1, -100, "manual_correction")
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)
}

func TestSpend_WritesOutboxEvent(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db, newTestConfig())
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, 1)
	require.NoError(t, err)

	result, err := svc.Spend(ctx, 1, 10, model.ReasonFeatureUsage, nil)
	require.NoError(t, err)
	require.True(t, result.OK)

	msgs, err := repository.NewOutboxRepository(db).GetPendingMessages(ctx, 100)
	require.NoError(t, err)
	// 欢迎奖励一条 + 消费一条
	assert.Len(t, msgs, 2)
}
