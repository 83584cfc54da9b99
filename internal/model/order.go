package model

import (
	"encoding/json"
	"time"
)

// ============================================================================
// 订单状态常量
// ============================================================================

const (
	OrderStatusPending    = "PENDING"    // 已下单待处理
	OrderStatusProcessing = "PROCESSING" // 卖家备货中
	OrderStatusShipped    = "SHIPPED"    // 已发货
	OrderStatusDelivered  = "DELIVERED"  // 买家已确认收货（终态）
	OrderStatusCancelled  = "CANCELLED"  // 已取消（终态）
	OrderStatusDisputed   = "DISPUTED"   // 争议中
	OrderStatusRefunded   = "REFUNDED"   // 已退款（终态）
)

// 货款状态：下单即托管，确认收货后释放给卖家
const (
	PaymentStatusHeld     = "HELD"
	PaymentStatusReleased = "RELEASED"
)

// 卖家结算状态
const (
	PayoutStatusOnHold   = "ON_HOLD"
	PayoutStatusReleased = "RELEASED"
	PayoutStatusFrozen   = "FROZEN" // 争议发生后冻结，无论之前处于什么状态
)

// ValidStatusTransitions 订单状态机
// 争议可以从任意非终态发起；DELIVERED / CANCELLED / REFUNDED 为终态
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDisputed:   {OrderStatusRefunded},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 订单实体
// ============================================================================

// OrderItem 订单商品行，序列化为 JSON 存在 Items 字段里
type OrderItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Order 商城订单表
// 买家下单时通过积分支付，货款托管（HELD）；
// 确认收货需要卖家录入的 6 位收货码与订单上的 DeliveryCode 完全一致，
// 校验通过后才释放货款（RELEASED）并给卖家结算
type Order struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo            string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID
	BuyerID            int64      `gorm:"index;not null" json:"buyer_id"`
	SellerID           int64      `gorm:"index;not null" json:"seller_id"`
	Items              string     `gorm:"type:text;not null" json:"items"` // OrderItem 数组 JSON
	Total              int64      `gorm:"not null" json:"total"`
	Status             string     `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus      string     `gorm:"type:varchar(20);not null;default:HELD" json:"payment_status"`
	PayoutStatus       string     `gorm:"type:varchar(20);not null;default:ON_HOLD" json:"payout_status"`
	DeliveryCode       string     `gorm:"type:varchar(6);not null" json:"-"` // 收货码，不下发给卖家端
	DeliveryConfirmed  bool       `gorm:"not null;default:false" json:"delivery_confirmed"`
	TrackingNumber     string     `gorm:"type:varchar(64)" json:"tracking_number"`
	Carrier            string     `gorm:"type:varchar(64)" json:"carrier"`
	ShippedAt          *time.Time `json:"shipped_at"`
	DisputeReason      string     `gorm:"type:varchar(64)" json:"dispute_reason"`
	DisputeDescription string     `gorm:"type:varchar(512)" json:"dispute_description"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "shop_order"
}

// ParseItems 反序列化商品行
func (o *Order) ParseItems() ([]OrderItem, error) {
	var items []OrderItem
	if o.Items == "" {
		return items, nil
	}
	err := json.Unmarshal([]byte(o.Items), &items)
	return items, err
}

// IsTerminal 判断订单是否处于终态
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}
