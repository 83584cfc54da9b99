package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 事件类型（写进 payload 的 event 字段，消费方按此分流）
const (
	EventCreditGranted       = "CREDIT_GRANTED"
	EventCreditSpent         = "CREDIT_SPENT"
	EventOrderCreated        = "ORDER_CREATED"
	EventOrderShipped        = "ORDER_SHIPPED"
	EventOrderDelivered      = "ORDER_DELIVERED"
	EventOrderDisputed       = "ORDER_DISPUTED"
	EventOrderRefunded       = "ORDER_REFUNDED"
	EventPlanChanged         = "PLAN_CHANGED"
	EventSubscriptionRenewed = "SUBSCRIPTION_RENEWED"
)

// OutboxMessage 事务性发件箱
// 业务事务内落库，OutboxSender 任务异步投递到 Kafka，保证业务变更与事件最终一致
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
