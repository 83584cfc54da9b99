package handler

import (
	"errors"

	"kirato/internal/repository"
	"kirato/internal/service"
	"kirato/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 认证相关接口
// ============================================================

// SignUpRequest 注册请求
type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
	Role        string `json:"role"` // buyer / seller，缺省 buyer
}

// SignUp 注册
// POST /api/v1/auth/signup
func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.authService.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			response.BusinessError(c, response.CodeEmailTaken, h.T(c, "auth.email_taken"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// SignInRequest 登录请求
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignIn 登录
// POST /api/v1/auth/signin
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.authService.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrWrongPassword) {
			response.BusinessError(c, response.CodeAuthFailed, h.T(c, "auth.wrong_password"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// SignOut 登出
// POST /api/v1/auth/signout
//
// JWT 是无状态的，服务端不维护会话，登出由客户端丢弃 token 完成；
// 保留该端点是为了前端登出埋点和将来接黑名单时不改接口
func (h *Handler) SignOut(c *gin.Context) {
	response.Success(c, gin.H{"message": "已登出"})
}

// SendPasswordReset 发起密码重置
// POST /api/v1/auth/password/reset
func (h *Handler) SendPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.authService.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": h.T(c, "auth.reset_sent")})
}

// ResetPassword 按重置凭证设置新密码
// POST /api/v1/auth/password/confirm
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, repository.ErrResetTokenInvalid) {
			response.BusinessError(c, response.CodeTokenInvalid, h.T(c, "auth.token_invalid"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "密码已更新"})
}

// VerifyEmail 邮箱验证
// POST /api/v1/auth/email/verify
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.BusinessError(c, response.CodeTokenInvalid, h.T(c, "auth.token_invalid"))
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "邮箱验证成功"})
}

// Me 当前用户信息
// GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, user)
}
