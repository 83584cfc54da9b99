package handler

import (
	"kirato/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(LocaleMiddleware(cfg.Business.DefaultLocale))

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 认证相关（无需登录态）
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.SignUp)
			auth.POST("/signin", h.SignIn)
			auth.POST("/password/reset", h.SendPasswordReset)
			auth.POST("/password/confirm", h.ResetPassword)
			auth.POST("/email/verify", h.VerifyEmail)
		}

		// 以下均需登录态
		authed := api.Group("", h.AuthMiddleware())
		{
			authed.POST("/auth/signout", h.SignOut)
			authed.GET("/auth/me", h.Me)

			// 钱包相关
			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", h.GetBalance)
				wallet.GET("/ledger", h.ListLedger)
				wallet.POST("/consume", h.ConsumeCredits)
				wallet.POST("/grant", h.RequireRole("admin"), h.GrantCredits)
			}

			// 订阅相关
			subscription := authed.Group("/subscription")
			{
				subscription.GET("/detail", h.GetSubscription)
				subscription.GET("/plans", h.ListPlans)
				subscription.POST("/change", h.ChangePlan)
				subscription.POST("/cancel", h.CancelSubscription)
			}

			// 订单相关
			order := authed.Group("/order")
			{
				order.POST("/checkout", h.Checkout)
				order.GET("/detail", h.GetOrder)
				order.GET("/list", h.ListOrders)
				order.POST("/ship", h.RequireRole("seller"), h.MarkShipped)
				order.POST("/confirm-delivery", h.RequireRole("seller"), h.ConfirmDelivery)
				order.POST("/dispute", h.OpenDispute)
				order.POST("/cancel", h.CancelOrder)
				order.POST("/refund", h.RequireRole("admin"), h.RefundDisputed)
			}

			// 会话相关
			chat := authed.Group("/chat")
			{
				chat.GET("/conversations", h.ListConversations)
				chat.GET("/messages", h.ListMessages)
				chat.POST("/send", h.SendMessage)
				chat.POST("/heartbeat", h.RequireRole("seller"), h.Heartbeat)
				chat.POST("/handoff", h.RequireRole("seller"), h.SetHandoff)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
