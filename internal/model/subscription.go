package model

import (
	"time"
)

// ============================================================================
// 订阅套餐常量
// ============================================================================

const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// RenewalPeriod 续费周期，固定 30 天
// 【注意】续费时下一个 RenewsAt 必须从旧的 RenewsAt 推算（+30天），
// 而不是从当前时间推算，否则多次延迟检查会导致周期不断后移
const RenewalPeriod = 30 * 24 * time.Hour

// Plan 套餐定义（价格单位：分；积分按月发放）
type Plan struct {
	ID             string `json:"id"`
	MonthlyPrice   int64  `json:"monthly_price"`
	MonthlyCredits int64  `json:"monthly_credits"`
}

// Plans 套餐目录，写死在代码里（运营改价直接改这里发版）
var Plans = map[string]Plan{
	PlanFree:     {ID: PlanFree, MonthlyPrice: 0, MonthlyCredits: 50},
	PlanStarter:  {ID: PlanStarter, MonthlyPrice: 990, MonthlyCredits: 200},
	PlanPro:      {ID: PlanPro, MonthlyPrice: 2990, MonthlyCredits: 800},
	PlanBusiness: {ID: PlanBusiness, MonthlyPrice: 9990, MonthlyCredits: 3000},
}

// GetPlan 查询套餐定义
func GetPlan(planID string) (Plan, bool) {
	plan, ok := Plans[planID]
	return plan, ok
}

// ============================================================================
// 订阅实体
// ============================================================================

// Subscription 用户订阅表，每个用户一条
// 默认创建为 free 套餐，升级走 ChangePlan，续费走被动检查（EvaluateRenewal）
type Subscription struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	PlanID    string    `gorm:"type:varchar(20);not null;default:free" json:"plan_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:active" json:"status"`
	StartedAt time.Time `gorm:"not null" json:"started_at"`
	RenewsAt  time.Time `gorm:"not null;index" json:"renews_at"` // 下次续费时间（续费后必须在未来）
	AutoRenew bool      `gorm:"not null;default:true" json:"auto_renew"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// DueForRenewal 判断当前时刻是否到达续费点
func (s *Subscription) DueForRenewal(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.AutoRenew && !now.Before(s.RenewsAt)
}
