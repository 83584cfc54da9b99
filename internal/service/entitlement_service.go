package service

import (
	"context"
	"fmt"
	"time"

	"kirato/internal/config"
	"kirato/internal/infrastructure/lock"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EntitlementService 积分门禁
//
// 【重要】这是全系统唯一的积分消费入口：任何要扣积分的功能
// （AI 工具调用、下单、增值服务）都必须经过 RequireCredits，
// 任何模块都不允许直接改钱包余额
type EntitlementService struct {
	walletService *WalletService
	redisClient   *redis.Client
	cfg           *config.Config
}

func NewEntitlementService(walletService *WalletService, redisClient *redis.Client, cfg *config.Config) *EntitlementService {
	return &EntitlementService{
		walletService: walletService,
		redisClient:   redisClient,
		cfg:           cfg,
	}
}

// EntitlementDecision 门禁判定结果
// Allowed=false 不是错误：携带所需/可用积分，前端据此弹出充值引导
type EntitlementDecision struct {
	Allowed   bool  `json:"allowed"`
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

// RequireCredits 扣减指定积分，不足则拒绝
//
// 同一用户的扣减用分布式锁串行化，减少乐观锁冲突；
// 未配置 Redis 时（单机/测试）直接依赖条件更新的原子性
func (s *EntitlementService) RequireCredits(ctx context.Context, userID int64, amount int64, reason string, metadata map[string]string) (*EntitlementDecision, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if s.redisClient != nil {
		spendLock := lock.NewSpendLock(s.redisClient, userID, uuid.NewString())
		if err := spendLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer spendLock.Unlock(ctx)
	}

	result, err := s.walletService.Spend(ctx, userID, amount, reason, metadata)
	if err != nil {
		return nil, err
	}

	if !result.OK {
		logrus.Infof("积分不足被拦截: userID=%d, required=%d, available=%d, reason=%s",
			userID, amount, result.Balance, reason)
		return &EntitlementDecision{
			Allowed:   false,
			Required:  amount,
			Available: result.Balance,
		}, nil
	}

	return &EntitlementDecision{
		Allowed:   true,
		Required:  amount,
		Available: result.Balance,
	}, nil
}
