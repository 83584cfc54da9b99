package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kirato/internal/config"
	"kirato/internal/model"
	"kirato/internal/repository"
	"kirato/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrDeliveryCodeMismatch = errors.New("收货码不正确")
	ErrTrackingRequired     = errors.New("快递单号不能为空")
	ErrNotOrderOwner        = errors.New("无权操作该订单")
	ErrEmptyOrder           = errors.New("订单商品不能为空")
	ErrOrderTerminal        = errors.New("订单已结束")
)

// OrderService 商城订单服务（积分支付 + 货款托管）
//
// 货款生命周期：下单时买家积分经门禁扣减、货款进入托管（HELD/ON_HOLD）；
// 买家收货后卖家录入收货码，完全匹配才释放货款（RELEASED）并结算给卖家；
// 争议一旦发起，无论之前处于什么状态结算一律冻结（FROZEN）
type OrderService struct {
	db                 *gorm.DB
	cfg                *config.Config
	orderRepo          *repository.OrderRepository
	outboxRepo         *repository.OutboxRepository
	walletService      *WalletService
	entitlementService *EntitlementService
}

func NewOrderService(db *gorm.DB, cfg *config.Config, walletService *WalletService, entitlementService *EntitlementService) *OrderService {
	return &OrderService{
		db:                 db,
		cfg:                cfg,
		orderRepo:          repository.NewOrderRepository(db),
		outboxRepo:         repository.NewOutboxRepository(db),
		walletService:      walletService,
		entitlementService: entitlementService,
	}
}

type CheckoutRequest struct {
	RequestID string            `json:"request_id"`
	BuyerID   int64             `json:"buyer_id"`
	SellerID  int64             `json:"seller_id"`
	Items     []model.OrderItem `json:"items"`
}

// CheckoutResult 下单结果
// DeliveryCode 只在下单时下发给买家一次，卖家端接口永远拿不到
type CheckoutResult struct {
	OrderNo      string               `json:"order_no,omitempty"`
	Status       string               `json:"status,omitempty"`
	Total        int64                `json:"total,omitempty"`
	DeliveryCode string               `json:"delivery_code,omitempty"`
	Decision     *EntitlementDecision `json:"decision,omitempty"` // 积分不足时返回
}

// Checkout 下单
// 幂等：相同 request_id 只会扣一次积分、建一个订单；
// 扣积分走门禁（全系统唯一扣减入口），建单失败则补偿退款
func (s *OrderService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	existingOrder, err := s.orderRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existingOrder != nil {
		return &CheckoutResult{
			OrderNo: existingOrder.OrderNo,
			Status:  existingOrder.Status,
			Total:   existingOrder.Total,
		}, nil
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var total int64
	for _, item := range req.Items {
		if item.Price <= 0 || item.Quantity <= 0 {
			return nil, ErrInvalidAmount
		}
		total += item.Price * int64(item.Quantity)
	}

	// 扣减买家积分（门禁内部带用户级锁 + 条件更新，天然防重复扣）
	decision, err := s.entitlementService.RequireCredits(ctx, req.BuyerID, total,
		model.ReasonOrderCheckout, map[string]string{"request_id": req.RequestID})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return &CheckoutResult{Decision: decision}, nil
	}

	itemsRaw, _ := json.Marshal(req.Items)
	order := &model.Order{
		OrderNo:       idgen.GenerateOrderNo(),
		RequestID:     req.RequestID,
		BuyerID:       req.BuyerID,
		SellerID:      req.SellerID,
		Items:         string(itemsRaw),
		Total:         total,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusHeld,
		PayoutStatus:  model.PayoutStatusOnHold,
		DeliveryCode:  idgen.GenerateDeliveryCode(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}
		return s.appendOrderEvent(ctx, tx, model.EventOrderCreated, order)
	})
	if err != nil {
		// 已扣积分但建单失败，补偿退款
		if refundErr := s.walletService.Refund(ctx, req.BuyerID, total,
			model.ReasonOrderRefund, map[string]string{"request_id": req.RequestID}); refundErr != nil {
			logrus.Errorf("下单失败且补偿退款失败，需人工介入: buyerID=%d, amount=%d, err=%v",
				req.BuyerID, total, refundErr)
		}
		return nil, err
	}

	logrus.Infof("下单成功: orderNo=%s, buyerID=%d, sellerID=%d, total=%d",
		order.OrderNo, req.BuyerID, req.SellerID, total)

	return &CheckoutResult{
		OrderNo:      order.OrderNo,
		Status:       order.Status,
		Total:        total,
		DeliveryCode: order.DeliveryCode,
	}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

// MarkShipped 卖家发货：PENDING/PROCESSING -> SHIPPED
// 快递单号必填，发货时间以服务端为准
func (s *OrderService) MarkShipped(ctx context.Context, orderNo string, sellerID int64, trackingNumber, carrier string) error {
	if trackingNumber == "" {
		return ErrTrackingRequired
	}

	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if order.SellerID != sellerID {
		return ErrNotOrderOwner
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, order.Status, model.OrderStatusShipped,
			map[string]interface{}{
				"tracking_number": trackingNumber,
				"carrier":         carrier,
				"shipped_at":      &now,
			}); err != nil {
			return err
		}
		order.Status = model.OrderStatusShipped
		return s.appendOrderEvent(ctx, tx, model.EventOrderShipped, order)
	})
	if err != nil {
		return err
	}

	logrus.Infof("订单已发货: orderNo=%s, tracking=%s/%s", orderNo, carrier, trackingNumber)
	return nil
}

// ConfirmDelivery 确认收货：SHIPPED -> DELIVERED
//
// 【关键点】收货码必须与订单上的完全一致（字符串精确比较）：
// 匹配则释放托管货款并把货款结算成卖家积分；
// 不匹配不产生任何状态变更，允许重试（不做次数限制）
func (s *OrderService) ConfirmDelivery(ctx context.Context, orderNo string, sellerID int64, enteredCode string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if order.SellerID != sellerID {
		return ErrNotOrderOwner
	}
	if order.Status != model.OrderStatusShipped {
		return repository.ErrOrderStatusInvalid
	}

	if enteredCode != order.DeliveryCode {
		logrus.Warnf("收货码校验失败: orderNo=%s", orderNo)
		return ErrDeliveryCodeMismatch
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, model.OrderStatusShipped, model.OrderStatusDelivered,
			map[string]interface{}{
				"delivery_confirmed": true,
				"payment_status":     model.PaymentStatusReleased,
				"payout_status":      model.PayoutStatusReleased,
			}); err != nil {
			return err
		}

		// 托管货款释放，结算给卖家
		if err := s.walletService.GrantTx(ctx, tx, order.SellerID, order.Total,
			model.ReasonOrderPayout, map[string]string{"order_no": orderNo}); err != nil {
			return err
		}

		order.Status = model.OrderStatusDelivered
		return s.appendOrderEvent(ctx, tx, model.EventOrderDelivered, order)
	})
	if err != nil {
		return err
	}

	logrus.Infof("确认收货，货款已释放: orderNo=%s, sellerID=%d, total=%d", orderNo, order.SellerID, order.Total)
	return nil
}

// OpenDispute 发起争议，任意非终态订单都可以
// 无论之前结算状态如何，一律冻结；争议由外部人工裁决，这里不做自动处理
func (s *OrderService) OpenDispute(ctx context.Context, orderNo string, userID int64, reason, description string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return ErrNotOrderOwner
	}
	if order.IsTerminal() {
		return ErrOrderTerminal
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, order.Status, model.OrderStatusDisputed,
			map[string]interface{}{
				"payout_status":       model.PayoutStatusFrozen,
				"dispute_reason":      reason,
				"dispute_description": description,
			}); err != nil {
			return err
		}
		order.Status = model.OrderStatusDisputed
		return s.appendOrderEvent(ctx, tx, model.EventOrderDisputed, order)
	})
	if err != nil {
		return err
	}

	logrus.Infof("订单进入争议，结算已冻结: orderNo=%s, reason=%s", orderNo, reason)
	return nil
}

// CancelOrder 买家在发货前取消订单，托管积分原路退回
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string, buyerID int64) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if order.BuyerID != buyerID {
		return ErrNotOrderOwner
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, order.Status, model.OrderStatusCancelled, nil); err != nil {
			return err
		}
		return s.walletService.RefundTx(ctx, tx, order.BuyerID, order.Total,
			model.ReasonOrderRefund, map[string]string{"order_no": orderNo})
	})
}

// RefundDisputed 争议裁决退款（运营后台）：DISPUTED -> REFUNDED
// 积分退回买家，结算保持冻结（货款没有发给卖家）
func (s *OrderService) RefundDisputed(ctx context.Context, orderNo string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, model.OrderStatusDisputed, model.OrderStatusRefunded,
			map[string]interface{}{
				"payment_status": model.PaymentStatusHeld,
			}); err != nil {
			return err
		}
		if err := s.walletService.RefundTx(ctx, tx, order.BuyerID, order.Total,
			model.ReasonOrderRefund, map[string]string{"order_no": orderNo}); err != nil {
			return err
		}
		order.Status = model.OrderStatusRefunded
		return s.appendOrderEvent(ctx, tx, model.EventOrderRefunded, order)
	})
	if err != nil {
		return err
	}

	logrus.Infof("争议退款完成: orderNo=%s, buyerID=%d, total=%d", orderNo, order.BuyerID, order.Total)
	return nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByBuyer(ctx, buyerID, page, pageSize)
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListBySeller(ctx, sellerID, page, pageSize)
}

func (s *OrderService) appendOrderEvent(ctx context.Context, tx *gorm.DB, event string, order *model.Order) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"event":     event,
		"order_no":  order.OrderNo,
		"buyer_id":  order.BuyerID,
		"seller_id": order.SellerID,
		"total":     order.Total,
		"status":    order.Status,
	})

	outboxMsg := &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      s.cfg.Kafka.Topic.OrderEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
