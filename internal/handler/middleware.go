package handler

import (
	"strings"
	"time"

	"kirato/internal/model"
	"kirato/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ctxKeyUserID = "uid"
	ctxKeyRole   = "role"
	ctxKeyLocale = "locale"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		logrus.Infof("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logrus.Errorf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Accept-Language, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// LocaleMiddleware 语言协商中间件
// 只取 Accept-Language 第一个语言标签的主语言（zh-CN -> zh）
func LocaleMiddleware(defaultLocale string) gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := defaultLocale
		header := c.GetHeader("Accept-Language")
		if header != "" {
			tag := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
			if i := strings.IndexAny(tag, "-_;"); i > 0 {
				tag = tag[:i]
			}
			if tag != "" {
				locale = strings.ToLower(tag)
			}
		}
		c.Set(ctxKeyLocale, locale)
		c.Next()
	}
}

// AuthMiddleware 认证中间件，解析 Bearer token 并注入用户身份
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, h.T(c, "auth.token_invalid"))
			c.Abort()
			return
		}

		claims, err := h.authService.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Unauthorized(c, h.T(c, "auth.token_invalid"))
			c.Abort()
			return
		}

		c.Set(ctxKeyUserID, claims.UserID)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole 角色校验中间件（卖家/管理员接口用）
func (h *Handler) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxKeyRole)
		for _, r := range roles {
			if role == r || role == model.RoleAdmin {
				c.Next()
				return
			}
		}
		response.Error(c, response.CodeForbidden, "无权访问")
		c.Abort()
	}
}

// currentUserID 从上下文取当前用户ID
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxKeyUserID)
}
