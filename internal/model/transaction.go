package model

import (
	"time"
)

// ============================================================================
// 积分流水类型常量
// ============================================================================

const (
	TransactionTypeGrant      = "GRANT"      // 发放（欢迎奖励、订阅续费、订单货款等）
	TransactionTypeSpend      = "SPEND"      // 消费（扣减积分）
	TransactionTypeRefund     = "REFUND"     // 退款（订单取消/争议退款）
	TransactionTypeAdjustment = "ADJUSTMENT" // 人工调账
)

// 常用流水原因（reason 为自由分类键，这里列出系统内置的几种）
const (
	ReasonWelcomeBonus        = "welcome_bonus"
	ReasonFeatureUsage        = "feature_usage"
	ReasonSubscriptionRenewal = "subscription_renewal"
	ReasonPlanChange          = "plan_change"
	ReasonOrderCheckout       = "order_checkout"
	ReasonOrderPayout         = "order_payout"
	ReasonOrderRefund         = "order_refund"
)

// ============================================================================
// 积分流水实体
// ============================================================================

// CreditTransaction 积分流水表
// 记录钱包的每一笔积分变动，是对账的核心依据
//
// 【重要】流水表设计原则：
//  1. 只追加，不修改 —— 任意时刻 Balance = 初始余额 + SUM(Amount)
//  2. 金额带符号：发放为正，消费为负
//  3. 记录交易前后余额 —— 便于校验余额一致性
//  4. 每个用户只保留最近 100 条（上限可配置），更早的流水静默裁剪，
//     这是产品层面接受的有损历史，不是缺陷
type CreditTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`                               // 用户ID
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                       // 流水类型
	Amount        int64     `gorm:"not null" json:"amount"`                                      // 金额（正数入账，负数出账）
	Reason        string    `gorm:"type:varchar(64);not null" json:"reason"`                     // 分类原因键
	Metadata      string    `gorm:"type:varchar(512)" json:"metadata"`                           // 附加信息（JSON，如 {"plan_id":"pro"}）
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                              // 交易前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                               // 交易后余额
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
