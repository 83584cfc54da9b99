package model

import (
	"fmt"
	"time"
)

// ============================================================================
// 会话 / 消息常量
// ============================================================================

// 接管模式：ai = 脚本自动回复，seller = 卖家人工接管
const (
	HandoffModeAI     = "ai"
	HandoffModeSeller = "seller"
)

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

const (
	SenderBuyer  = "buyer"
	SenderSeller = "seller"
	SenderAI     = "ai"
)

// ConvKey 生成会话键，格式固定为 seller:<id>|buyer:<id>
func ConvKey(sellerID, buyerID int64) string {
	return fmt.Sprintf("seller:%d|buyer:%d", sellerID, buyerID)
}

// ============================================================================
// 会话实体
// ============================================================================

// Conversation 买卖家会话表
// SellerPresence 是 Redis 心跳键的落库镜像，由 PresenceSweep 任务定期校准；
// 买家来消息 UnreadCount+1，卖家发任意消息清零
type Conversation struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConvKey         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"conv_key"`
	SellerID        int64     `gorm:"index;not null" json:"seller_id"`
	BuyerID         int64     `gorm:"index;not null" json:"buyer_id"`
	HandoffMode     string    `gorm:"type:varchar(10);not null;default:ai" json:"handoff_mode"`
	SellerPresence  string    `gorm:"type:varchar(10);not null;default:offline" json:"seller_presence"`
	AIEnabled       bool      `gorm:"not null;default:true" json:"ai_enabled"`
	UnreadCount     int       `gorm:"not null;default:0" json:"unread_count"`
	LastMessageAt   time.Time `json:"last_message_at"`
	LastMessageText string    `gorm:"type:varchar(512)" json:"last_message_text"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversation"
}

// ShouldAutoReply 自动回复判定
// 只有「买家发的消息 + AI 接管模式 + 卖家离线 + 开关打开」四个条件同时满足才触发，
// 卖家或 AI 自己发的消息绝不触发（防止回复死循环）
func (c *Conversation) ShouldAutoReply(sender string) bool {
	return sender == SenderBuyer &&
		c.HandoffMode == HandoffModeAI &&
		c.SellerPresence == PresenceOffline &&
		c.AIEnabled
}

// ChatMessage 会话消息表，只追加
type ChatMessage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID
	ConvKey   string    `gorm:"type:varchar(64);index;not null" json:"conv_key"`
	Sender    string    `gorm:"type:varchar(10);not null" json:"sender"`
	Text      string    `gorm:"type:varchar(2048);not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_message"
}

// ============================================================================
// 自动回复任务
// ============================================================================

const (
	AutoReplyStatusPending = "PENDING"
	AutoReplyStatusSent    = "SENT"
	AutoReplyStatusSkipped = "SKIPPED" // 到期前卖家已接管/上线，任务作废
)

// AutoReplyTask 延迟自动回复任务表
// 参照 outbox 的做法落库排队：买家消息命中自动回复条件时写入一条 PENDING 任务，
// AutoResponder 任务到期扫描执行。TriggerMessageID 唯一索引保证
// 同一条买家消息最多触发一次回复
type AutoReplyTask struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConvKey          string    `gorm:"type:varchar(64);index;not null" json:"conv_key"`
	TriggerMessageID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"trigger_message_id"`
	DueAt            time.Time `gorm:"not null;index" json:"due_at"`
	Status           string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutoReplyTask) TableName() string {
	return "auto_reply_task"
}
