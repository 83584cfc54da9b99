package handler

import (
	"errors"

	"kirato/internal/model"
	"kirato/internal/repository"
	"kirato/internal/service"
	"kirato/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 订单相关接口
// ============================================================

// CheckoutRequest 下单请求
type CheckoutRequest struct {
	RequestID string            `json:"request_id" binding:"required"`
	SellerID  int64             `json:"seller_id" binding:"required"`
	Items     []model.OrderItem `json:"items" binding:"required"`
}

// Checkout 下单（积分支付，货款进入托管）
// POST /api/v1/order/checkout
//
// 响应里的 delivery_code 只在首次下单时返回一次，买家需自行保存
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.orderService.Checkout(c.Request.Context(), &service.CheckoutRequest{
		RequestID: req.RequestID,
		BuyerID:   currentUserID(c),
		SellerID:  req.SellerID,
		Items:     req.Items,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyOrder) || errors.Is(err, service.ErrInvalidAmount) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	if result.Decision != nil && !result.Decision.Allowed {
		response.ErrorData(c, response.CodeCreditNotEnough, h.T(c, "wallet.insufficient"), result.Decision)
		return
	}

	response.Success(c, result)
}

// GetOrder 查询订单详情（仅买卖双方可见，收货码不随订单返回）
// GET /api/v1/order/detail?order_no=ORDxxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 不能为空")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, h.T(c, "order.not_found"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	uid := currentUserID(c)
	if order.BuyerID != uid && order.SellerID != uid && c.GetString(ctxKeyRole) != model.RoleAdmin {
		// 非当事人按不存在处理，避免订单号被探测
		response.BusinessError(c, response.CodeOrderNotFound, h.T(c, "order.not_found"))
		return
	}

	response.Success(c, order)
}

// ListOrders 按当前角色列订单
// GET /api/v1/order/list?page=1&page_size=20
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := pageParams(c)
	uid := currentUserID(c)

	var (
		list  []*model.Order
		total int64
		err   error
	)
	if c.GetString(ctxKeyRole) == model.RoleSeller {
		list, total, err = h.orderService.ListSellerOrders(c.Request.Context(), uid, page, pageSize)
	} else {
		list, total, err = h.orderService.ListBuyerOrders(c.Request.Context(), uid, page, pageSize)
	}
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// MarkShippedRequest 发货请求
type MarkShippedRequest struct {
	OrderNo        string `json:"order_no" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
	Carrier        string `json:"carrier"`
}

// MarkShipped 卖家发货
// POST /api/v1/order/ship
func (h *Handler) MarkShipped(c *gin.Context) {
	var req MarkShippedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, h.T(c, "order.tracking_required"))
		return
	}

	err := h.orderService.MarkShipped(c.Request.Context(), req.OrderNo, currentUserID(c),
		req.TrackingNumber, req.Carrier)
	if err != nil {
		h.orderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusShipped})
}

// ConfirmDelivery 卖家录入收货码确认送达
// POST /api/v1/order/confirm-delivery
//
// 收货码不匹配时订单保持原状，可重试
func (h *Handler) ConfirmDelivery(c *gin.Context) {
	var req struct {
		OrderNo      string `json:"order_no" binding:"required"`
		DeliveryCode string `json:"delivery_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.orderService.ConfirmDelivery(c.Request.Context(), req.OrderNo, currentUserID(c), req.DeliveryCode)
	if err != nil {
		if errors.Is(err, service.ErrDeliveryCodeMismatch) {
			response.BusinessError(c, response.CodeDeliveryCodeWrong, h.T(c, "order.code_mismatch"))
			return
		}
		h.orderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusDelivered})
}

// OpenDispute 买卖任一方发起争议，结算立即冻结
// POST /api/v1/order/dispute
func (h *Handler) OpenDispute(c *gin.Context) {
	var req struct {
		OrderNo     string `json:"order_no" binding:"required"`
		Reason      string `json:"reason" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.orderService.OpenDispute(c.Request.Context(), req.OrderNo, currentUserID(c),
		req.Reason, req.Description)
	if err != nil {
		h.orderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusDisputed})
}

// CancelOrder 买家发货前取消，积分原路退回
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), req.OrderNo, currentUserID(c)); err != nil {
		h.orderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusCancelled})
}

// RefundDisputed 争议裁决退款（运营后台）
// POST /api/v1/order/refund
func (h *Handler) RefundDisputed(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.orderService.RefundDisputed(c.Request.Context(), req.OrderNo); err != nil {
		h.orderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_no": req.OrderNo, "status": model.OrderStatusRefunded})
}

// orderError 订单通用错误分派
func (h *Handler) orderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, service.ErrNotOrderOwner):
		// 无权操作同样按不存在处理
		response.BusinessError(c, response.CodeOrderNotFound, h.T(c, "order.not_found"))
	case errors.Is(err, repository.ErrOrderStatusInvalid), errors.Is(err, service.ErrOrderTerminal):
		response.BusinessError(c, response.CodeOrderStatusInvalid, h.T(c, "order.status_invalid"))
	case errors.Is(err, service.ErrTrackingRequired):
		response.ParamError(c, h.T(c, "order.tracking_required"))
	default:
		response.ServerError(c, err.Error())
	}
}
