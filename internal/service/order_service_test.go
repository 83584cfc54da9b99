package service

import (
	"context"
	"testing"

	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBuyerID  = int64(1)
	testSellerID = int64(2)
)

func newOrderFixture(t *testing.T) (*OrderService, *WalletService) {
	db := newTestDB(t)
	cfg := newTestConfig()
	walletService := NewWalletService(db, cfg)
	entitlementService := NewEntitlementService(walletService, nil, cfg)
	orderService := NewOrderService(db, cfg, walletService, entitlementService)

	ctx := context.Background()
	_, err := walletService.GetOrCreateWallet(ctx, testBuyerID)
	require.NoError(t, err)
	_, err = walletService.GetOrCreateWallet(ctx, testSellerID)
	require.NoError(t, err)

	return orderService, walletService
}

func checkoutItems(price int64, qty int) []model.OrderItem {
	return []model.OrderItem{{ProductID: "p1", Title: "手办", Price: price, Quantity: qty}}
}

func mustCheckout(t *testing.T, svc *OrderService, requestID string, price int64) *CheckoutResult {
	t.Helper()
	result, err := svc.Checkout(context.Background(), &CheckoutRequest{
		RequestID: requestID,
		BuyerID:   testBuyerID,
		SellerID:  testSellerID,
		Items:     checkoutItems(price, 1),
	})
	require.NoError(t, err)
	require.Empty(t, result.Decision)
	require.NotEmpty(t, result.OrderNo)
	return result
}

func TestCheckout_DebitsBuyerAndHoldsPayment(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 30)
	assert.Equal(t, model.OrderStatusPending, result.Status)
	assert.Len(t, result.DeliveryCode, 6)

	balance, err := walletService.GetBalance(ctx, testBuyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)

	order, err := svc.GetOrder(ctx, result.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusHeld, order.PaymentStatus)
	assert.Equal(t, model.PayoutStatusOnHold, order.PayoutStatus)

	// 托管阶段卖家分文未得
	sellerBalance, err := walletService.GetBalance(ctx, testSellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sellerBalance)
}

func TestCheckout_IdempotentByRequestID(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	first := mustCheckout(t, svc, "req-1", 30)

	// 同一 request_id 重放：不再扣款，返回同一笔订单
	second, err := svc.Checkout(ctx, &CheckoutRequest{
		RequestID: "req-1",
		BuyerID:   testBuyerID,
		SellerID:  testSellerID,
		Items:     checkoutItems(30, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, first.OrderNo, second.OrderNo)
	assert.Empty(t, second.DeliveryCode) // 收货码只下发一次

	balance, err := walletService.GetBalance(ctx, testBuyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
}

func TestCheckout_InsufficientCreditsReturnsDecision(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	result, err := svc.Checkout(ctx, &CheckoutRequest{
		RequestID: "req-1",
		BuyerID:   testBuyerID,
		SellerID:  testSellerID,
		Items:     checkoutItems(500, 1),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Decision)
	assert.False(t, result.Decision.Allowed)
	assert.Equal(t, int64(500), result.Decision.Required)
	assert.Equal(t, int64(50), result.Decision.Available)
	assert.Empty(t, result.OrderNo)

	// 没有任何扣款
	balance, err := walletService.GetBalance(ctx, testBuyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestCheckout_RejectsEmptyOrder(t *testing.T) {
	svc, _ := newOrderFixture(t)

	_, err := svc.Checkout(context.Background(), &CheckoutRequest{
		RequestID: "req-1",
		BuyerID:   testBuyerID,
		SellerID:  testSellerID,
	})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestMarkShipped_RequiresTrackingNumber(t *testing.T) {
	svc, _ := newOrderFixture(t)
	result := mustCheckout(t, svc, "req-1", 10)

	err := svc.MarkShipped(context.Background(), result.OrderNo, testSellerID, "", "SF")
	assert.ErrorIs(t, err, ErrTrackingRequired)
}

func TestMarkShipped_OnlyOwnerSeller(t *testing.T) {
	svc, _ := newOrderFixture(t)
	result := mustCheckout(t, svc, "req-1", 10)

	err := svc.MarkShipped(context.Background(), result.OrderNo, 999, "SF123", "SF")
	assert.ErrorIs(t, err, ErrNotOrderOwner)
}

func TestConfirmDelivery_WrongCodeIsNoOp(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 30)
	require.NoError(t, svc.MarkShipped(ctx, result.OrderNo, testSellerID, "SF123", "SF"))

	wrongCode := "000000"
	if result.DeliveryCode == wrongCode {
		wrongCode = "000001"
	}
	err := svc.ConfirmDelivery(ctx, result.OrderNo, testSellerID, wrongCode)
	assert.ErrorIs(t, err, ErrDeliveryCodeMismatch)

	// 状态原地不动，可重试
	order, err := svc.GetOrder(ctx, result.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, order.Status)
	assert.Equal(t, model.PayoutStatusOnHold, order.PayoutStatus)

	sellerBalance, err := walletService.GetBalance(ctx, testSellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sellerBalance)

	// 换正确的码依然能确认
	require.NoError(t, svc.ConfirmDelivery(ctx, result.OrderNo, testSellerID, result.DeliveryCode))
}

func TestConfirmDelivery_ReleasesEscrowToSeller(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 30)
	require.NoError(t, svc.MarkShipped(ctx, result.OrderNo, testSellerID, "SF123", "SF"))
	require.NoError(t, svc.ConfirmDelivery(ctx, result.OrderNo, testSellerID, result.DeliveryCode))

	order, err := svc.GetOrder(ctx, result.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, order.Status)
	assert.Equal(t, model.PaymentStatusReleased, order.PaymentStatus)
	assert.Equal(t, model.PayoutStatusReleased, order.PayoutStatus)
	assert.True(t, order.DeliveryConfirmed)

	sellerBalance, err := walletService.GetBalance(ctx, testSellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), sellerBalance)
}

func TestConfirmDelivery_OnlyFromShipped(t *testing.T) {
	svc, _ := newOrderFixture(t)
	result := mustCheckout(t, svc, "req-1", 30)

	// 未发货不能确认收货，即使码是对的
	err := svc.ConfirmDelivery(context.Background(), result.OrderNo, testSellerID, result.DeliveryCode)
	assert.ErrorIs(t, err, repository.ErrOrderStatusInvalid)
}

func TestOpenDispute_FreezesPayoutFromAnyActiveState(t *testing.T) {
	svc, _ := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 10)
	require.NoError(t, svc.MarkShipped(ctx, result.OrderNo, testSellerID, "SF123", "SF"))

	require.NoError(t, svc.OpenDispute(ctx, result.OrderNo, testBuyerID, "not_received", "一直没收到"))

	order, err := svc.GetOrder(ctx, result.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDisputed, order.Status)
	assert.Equal(t, model.PayoutStatusFrozen, order.PayoutStatus)
	assert.Equal(t, "not_received", order.DisputeReason)
}

func TestOpenDispute_RejectedOnTerminalOrder(t *testing.T) {
	svc, _ := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 10)
	require.NoError(t, svc.MarkShipped(ctx, result.OrderNo, testSellerID, "SF123", "SF"))
	require.NoError(t, svc.ConfirmDelivery(ctx, result.OrderNo, testSellerID, result.DeliveryCode))

	err := svc.OpenDispute(ctx, result.OrderNo, testBuyerID, "changed_mind", "")
	assert.ErrorIs(t, err, ErrOrderTerminal)
}

func TestCancelOrder_RefundsBuyer(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 30)
	require.NoError(t, svc.CancelOrder(ctx, result.OrderNo, testBuyerID))

	order, err := svc.GetOrder(ctx, result.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	balance, err := walletService.GetBalance(ctx, testBuyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestCancelOrder_NotAfterShipped(t *testing.T) {
	svc, _ := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 30)
	require.NoError(t, svc.MarkShipped(ctx, result.OrderNo, testSellerID, "SF123", "SF"))

	err := svc.CancelOrder(ctx, result.OrderNo, testBuyerID)
	assert.ErrorIs(t, err, repository.ErrOrderStatusInvalid)
}

func TestRefundDisputed_RefundsBuyerKeepsPayoutFrozen(t *testing.T) {
	svc, walletService := newOrderFixture(t)
	ctx := context.Background()

	result := mustCheckout(t, svc, "req-1", 30)
	require.NoError(t, svc.OpenDispute(ctx, result.OrderNo, testBuyerID, "not_received", ""))
	require.NoError(t, svc.RefundDisputed(ctx, result.OrderNo))

	order, err := svc.GetOrder(ctx, result.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunded, order.Status)
	assert.Equal(t, model.PayoutStatusFrozen, order.PayoutStatus)

	buyerBalance, err := walletService.GetBalance(ctx, testBuyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), buyerBalance)

	sellerBalance, err := walletService.GetBalance(ctx, testSellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sellerBalance)
}
