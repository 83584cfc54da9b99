package repository

import (
	"context"
	"errors"
	"time"

	"kirato/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSubscriptionNotFound = errors.New("订阅不存在")
	ErrPlanNotFound         = errors.New("套餐不存在")
	ErrRenewalConflict      = errors.New("续费已被其他调用完成")
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// GetOrCreate 查询订阅，不存在则以 free 套餐创建
func (r *SubscriptionRepository) GetOrCreate(ctx context.Context, userID int64, now time.Time) (*model.Subscription, error) {
	sub, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	newSub := &model.Subscription{
		UserID:    userID,
		PlanID:    model.PlanFree,
		Status:    model.SubscriptionStatusActive,
		StartedAt: now,
		RenewsAt:  now.Add(model.RenewalPeriod),
		AutoRenew: true,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newSub).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// AdvanceRenewal 推进续费时间
// 【关键点】带上旧的 RenewsAt 做条件更新（CAS）：
// 两个调用方同时发现到期时，只有一方能更新成功，另一方拿到
// ErrRenewalConflict 放弃发放积分，保证每个周期最多发一次
func (r *SubscriptionRepository) AdvanceRenewal(ctx context.Context, tx *gorm.DB, userID int64, oldRenewsAt, newRenewsAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ? AND renews_at = ?", userID, oldRenewsAt).
		Update("renews_at", newRenewsAt)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRenewalConflict
	}
	return nil
}

// UpdatePlan 切换套餐，周期从 startedAt 重新起算
func (r *SubscriptionRepository) UpdatePlan(ctx context.Context, tx *gorm.DB, userID int64, planID string, startedAt, renewsAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"plan_id":    planID,
			"status":     model.SubscriptionStatusActive,
			"started_at": startedAt,
			"renews_at":  renewsAt,
			"auto_renew": true,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) Cancel(ctx context.Context, userID int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"status":     model.SubscriptionStatusCanceled,
			"auto_renew": false,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListDue 查询已到续费点的活跃订阅（续费扫描任务用）
func (r *SubscriptionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_renew = ? AND renews_at <= ?", model.SubscriptionStatusActive, true, now).
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
