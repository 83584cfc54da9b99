package model

import (
	"time"
)

// Wallet 用户钱包表
// 记录用户的积分余额，是整个计费系统的核心数据
//
// 【注意】LifetimeEarned / LifetimeSpent 只用于报表展示，
// 余额的唯一权威来源是 Balance + 流水表校验
type Wallet struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`       // 用户ID
	Balance        int64     `gorm:"not null;default:0" json:"balance"`         // 可用积分余额（不允许为负）
	LifetimeEarned int64     `gorm:"not null;default:0" json:"lifetime_earned"` // 累计获得（单调递增）
	LifetimeSpent  int64     `gorm:"not null;default:0" json:"lifetime_spent"`  // 累计消费（单调递增）
	Version        int       `gorm:"not null;default:0" json:"version"`         // 乐观锁版本号
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallet"
}
