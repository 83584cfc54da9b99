package handler

import (
	"errors"
	"sort"

	"kirato/internal/model"
	"kirato/internal/repository"
	"kirato/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 订阅相关接口
// ============================================================

// GetSubscription 查询当前订阅
// GET /api/v1/subscription/detail
//
// 开了 renew_on_read 时读取即触发被动续费检查，到期的周期会在这里补发
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.subscriptionService.GetSubscription(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	plan, _ := model.GetPlan(sub.PlanID)
	response.Success(c, gin.H{
		"subscription": sub,
		"plan":         plan,
	})
}

// ListPlans 套餐目录
// GET /api/v1/subscription/plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans := make([]model.Plan, 0, len(model.Plans))
	for _, p := range model.Plans {
		plans = append(plans, p)
	}
	// 目录是 map，按月费排序保证输出稳定
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].MonthlyPrice < plans[j].MonthlyPrice
	})
	response.Success(c, plans)
}

// ChangePlan 切换套餐（立即生效，整月积分全额发放，不按剩余天数折算）
// POST /api/v1/subscription/change
func (h *Handler) ChangePlan(c *gin.Context) {
	var req struct {
		PlanID string `json:"plan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	sub, err := h.subscriptionService.ChangePlan(c.Request.Context(), currentUserID(c), req.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			response.BusinessError(c, response.CodePlanNotFound, h.T(c, "subscription.plan_unknown"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message":      h.T(c, "subscription.changed"),
		"subscription": sub,
	})
}

// CancelSubscription 取消自动续费（已发放的积分不回收）
// POST /api/v1/subscription/cancel
func (h *Handler) CancelSubscription(c *gin.Context) {
	if err := h.subscriptionService.Cancel(c.Request.Context(), currentUserID(c)); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "已取消自动续费"})
}
