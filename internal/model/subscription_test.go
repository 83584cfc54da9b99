package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueForRenewal(t *testing.T) {
	now := time.Now()

	active := Subscription{Status: SubscriptionStatusActive, AutoRenew: true, RenewsAt: now.Add(-time.Hour)}
	assert.True(t, active.DueForRenewal(now))

	// 恰好到点也算到期
	exact := Subscription{Status: SubscriptionStatusActive, AutoRenew: true, RenewsAt: now}
	assert.True(t, exact.DueForRenewal(now))

	future := Subscription{Status: SubscriptionStatusActive, AutoRenew: true, RenewsAt: now.Add(time.Hour)}
	assert.False(t, future.DueForRenewal(now))

	canceled := Subscription{Status: SubscriptionStatusCanceled, AutoRenew: true, RenewsAt: now.Add(-time.Hour)}
	assert.False(t, canceled.DueForRenewal(now))

	noAutoRenew := Subscription{Status: SubscriptionStatusActive, AutoRenew: false, RenewsAt: now.Add(-time.Hour)}
	assert.False(t, noAutoRenew.DueForRenewal(now))
}

func TestPlanCatalog(t *testing.T) {
	plan, ok := GetPlan(PlanPro)
	assert.True(t, ok)
	assert.Equal(t, int64(800), plan.MonthlyCredits)

	_, ok = GetPlan("platinum")
	assert.False(t, ok)

	// free 套餐也发月度积分
	free, ok := GetPlan(PlanFree)
	assert.True(t, ok)
	assert.Equal(t, int64(0), free.MonthlyPrice)
	assert.Equal(t, int64(50), free.MonthlyCredits)
}
