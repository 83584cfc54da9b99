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

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubscriptionService 订阅服务
// 续费不依赖支付渠道回调，而是被动检查：每次评估发现 now >= RenewsAt
// 就推进一个周期并发放该套餐的月度积分
type SubscriptionService struct {
	db            *gorm.DB
	cfg           *config.Config
	subRepo       *repository.SubscriptionRepository
	outboxRepo    *repository.OutboxRepository
	walletService *WalletService
}

func NewSubscriptionService(db *gorm.DB, cfg *config.Config, walletService *WalletService) *SubscriptionService {
	return &SubscriptionService{
		db:            db,
		cfg:           cfg,
		subRepo:       repository.NewSubscriptionRepository(db),
		outboxRepo:    repository.NewOutboxRepository(db),
		walletService: walletService,
	}
}

// GetSubscription 获取订阅（不存在则按 free 创建）
// renew_on_read 打开时顺带做一次续费检查，对应前端"每次打开都评估"的行为
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetOrCreate(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("获取订阅失败: %w", err)
	}

	if s.cfg.Business.RenewOnRead {
		if _, err := s.EvaluateRenewal(ctx, userID, time.Now()); err != nil {
			return nil, err
		}
		return s.subRepo.GetByUserID(ctx, userID)
	}

	return sub, nil
}

// EvaluateRenewal 续费检查，返回本次完成的续费周期数
//
// 【关键点】幂等与防重：
//  1. 新的 RenewsAt 从旧的 RenewsAt 推算（+30天），不从 now 推算，
//     避免反复检查把周期越推越晚
//  2. 推进用 CAS（WHERE renews_at = 旧值），并发评估时只有一方成功，
//     失败方直接放弃，保证每个周期最多发一次积分
//  3. 积分发放与周期推进在同一事务里，不会发了积分却没推周期
//  4. 停机多个周期后补发：每个错过的周期各发一次
func (s *SubscriptionService) EvaluateRenewal(ctx context.Context, userID int64, now time.Time) (int, error) {
	sub, err := s.subRepo.GetOrCreate(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("获取订阅失败: %w", err)
	}

	plan, ok := model.GetPlan(sub.PlanID)
	if !ok {
		return 0, repository.ErrPlanNotFound
	}

	renewed := 0
	for sub.DueForRenewal(now) {
		oldRenewsAt := sub.RenewsAt
		newRenewsAt := oldRenewsAt.Add(model.RenewalPeriod)

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.subRepo.AdvanceRenewal(ctx, tx, userID, oldRenewsAt, newRenewsAt); err != nil {
				return err
			}
			if plan.MonthlyCredits > 0 {
				if err := s.walletService.GrantTx(ctx, tx, userID, plan.MonthlyCredits,
					model.ReasonSubscriptionRenewal, map[string]string{"plan_id": plan.ID}); err != nil {
					return err
				}
			}
			return s.appendSubscriptionEvent(ctx, tx, model.EventSubscriptionRenewed, userID, plan.ID, newRenewsAt)
		})

		if err != nil {
			if errors.Is(err, repository.ErrRenewalConflict) {
				// 另一个评估方已经完成了这个周期
				return renewed, nil
			}
			return renewed, fmt.Errorf("续费失败: %w", err)
		}

		renewed++
		sub.RenewsAt = newRenewsAt
		logrus.Infof("订阅续费完成: userID=%d, plan=%s, credits=%d, renewsAt=%s",
			userID, plan.ID, plan.MonthlyCredits, newRenewsAt.Format(time.RFC3339))
	}

	return renewed, nil
}

// ChangePlan 切换套餐
// 不做按比例折算：无论上个周期还剩多少天，切换即重新起算 30 天
// 并全额发放新套餐的月度积分（产品层面的明确决定）
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID int64, planID string) (*model.Subscription, error) {
	plan, ok := model.GetPlan(planID)
	if !ok {
		return nil, repository.ErrPlanNotFound
	}

	if _, err := s.subRepo.GetOrCreate(ctx, userID, time.Now()); err != nil {
		return nil, fmt.Errorf("获取订阅失败: %w", err)
	}
	if _, err := s.walletService.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	renewsAt := now.Add(model.RenewalPeriod)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.subRepo.UpdatePlan(ctx, tx, userID, planID, now, renewsAt); err != nil {
			return fmt.Errorf("更新套餐失败: %w", err)
		}
		if plan.MonthlyCredits > 0 {
			if err := s.walletService.GrantTx(ctx, tx, userID, plan.MonthlyCredits,
				model.ReasonPlanChange, map[string]string{"plan_id": plan.ID}); err != nil {
				return err
			}
		}
		return s.appendSubscriptionEvent(ctx, tx, model.EventPlanChanged, userID, planID, renewsAt)
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("套餐切换完成: userID=%d, plan=%s", userID, planID)
	return s.subRepo.GetByUserID(ctx, userID)
}

// Cancel 取消自动续费，订阅立即进入 canceled 状态（不再发放月度积分）
func (s *SubscriptionService) Cancel(ctx context.Context, userID int64) error {
	return s.subRepo.Cancel(ctx, userID)
}

// RenewDueSubscriptions 批量续费扫描（定时任务入口）
func (s *SubscriptionService) RenewDueSubscriptions(ctx context.Context, now time.Time, limit int) (int, error) {
	subs, err := s.subRepo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, sub := range subs {
		renewed, err := s.EvaluateRenewal(ctx, sub.UserID, now)
		if err != nil {
			logrus.Errorf("[RenewalSweep] 用户续费失败: userID=%d, err=%v", sub.UserID, err)
			continue
		}
		total += renewed
	}
	return total, nil
}

func (s *SubscriptionService) appendSubscriptionEvent(ctx context.Context, tx *gorm.DB, event string, userID int64, planID string, renewsAt time.Time) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"event":     event,
		"user_id":   userID,
		"plan_id":   planID,
		"renews_at": renewsAt.Format(time.RFC3339),
	})

	outboxMsg := &model.OutboxMessage{
		MessageKey: fmt.Sprintf("sub:%d", userID),
		Topic:      s.cfg.Kafka.Topic.CreditEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, outboxMsg)
}
