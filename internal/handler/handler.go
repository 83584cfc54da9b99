package handler

import (
	"kirato/internal/config"
	"kirato/internal/infrastructure/broadcast"
	"kirato/internal/service"
	"kirato/pkg/i18n"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService         *service.AuthService
	walletService       *service.WalletService
	entitlementService  *service.EntitlementService
	subscriptionService *service.SubscriptionService
	orderService        *service.OrderService
	chatService         *service.ChatService
	bundle              *i18n.Bundle
	cfg                 *config.Config
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	walletService := service.NewWalletService(db, cfg)
	entitlementService := service.NewEntitlementService(walletService, rdb, cfg)

	return &Handler{
		authService:         service.NewAuthService(db, cfg, walletService),
		walletService:       walletService,
		entitlementService:  entitlementService,
		subscriptionService: service.NewSubscriptionService(db, cfg, walletService),
		orderService:        service.NewOrderService(db, cfg, walletService, entitlementService),
		chatService: service.NewChatService(db, rdb, cfg,
			broadcast.NewRedisBroadcaster(rdb), service.NewScriptedResponder()),
		bundle: i18n.NewBundle(cfg.Business.DefaultLocale),
		cfg:    cfg,
	}
}

// T 按请求语言取文案
func (h *Handler) T(c *gin.Context, key string) string {
	locale := c.GetString(ctxKeyLocale)
	return h.bundle.Resolve(locale, key)
}
