package handler

import (
	"errors"
	"strconv"

	"kirato/internal/model"
	"kirato/internal/repository"
	"kirato/internal/service"
	"kirato/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询积分余额
// GET /api/v1/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	wallet, err := h.walletService.GetOrCreateWallet(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, wallet)
}

// ListLedger 查询积分流水（倒序分页，最多保留最近100条）
// GET /api/v1/wallet/ledger?page=1&page_size=20
func (h *Handler) ListLedger(c *gin.Context) {
	page, pageSize := pageParams(c)

	list, total, err := h.walletService.ListLedger(c.Request.Context(), currentUserID(c), page, pageSize)
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

// ConsumeCreditsRequest 消费积分请求
type ConsumeCreditsRequest struct {
	Amount   int64             `json:"amount" binding:"required,min=1"`
	Reason   string            `json:"reason"`
	Metadata map[string]string `json:"metadata"`
}

// ConsumeCredits 消费积分（AI 调用等业务功能的统一扣费入口）
// POST /api/v1/wallet/consume
func (h *Handler) ConsumeCredits(c *gin.Context) {
	var req ConsumeCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = model.ReasonFeatureUsage
	}

	decision, err := h.entitlementService.RequireCredits(
		c.Request.Context(), currentUserID(c), req.Amount, req.Reason, req.Metadata)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	if !decision.Allowed {
		// 非异常分支：附带差额信息，前端弹充值/升级引导
		response.ErrorData(c, response.CodeCreditNotEnough, h.T(c, "wallet.insufficient"), decision)
		return
	}

	response.Success(c, decision)
}

// GrantCreditsRequest 管理后台发放积分请求
type GrantCreditsRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// GrantCredits 管理后台发放/调整积分（amount 可为负，负数走调整）
// POST /api/v1/wallet/grant
func (h *Handler) GrantCredits(c *gin.Context) {
	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var err error
	if req.Amount > 0 {
		err = h.walletService.Grant(c.Request.Context(), req.UserID, req.Amount, req.Reason, nil)
	} else {
		err = h.walletService.Adjust(c.Request.Context(), req.UserID, req.Amount, req.Reason)
	}
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			response.BusinessError(c, response.CodeCreditNotEnough, h.T(c, "wallet.insufficient"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	balance, err := h.walletService.GetBalance(c.Request.Context(), req.UserID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"user_id": req.UserID, "balance": balance})
}

// int64Query 解析必填的 int64 查询参数
func int64Query(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// pageParams 解析分页参数，page 从 1 开始
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
