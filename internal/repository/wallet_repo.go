package repository

import (
	"context"
	"errors"

	"kirato/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound   = errors.New("钱包不存在")
	ErrBalanceNotEnough = errors.New("积分余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 查询钱包，不存在则创建
// 返回 created=true 表示本次新建（调用方据此做一次性欢迎奖励）
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Wallet, bool, error) {
	wallet, err := r.GetByUserID(ctx, nil, userID)
	if err == nil {
		return wallet, false, nil
	}

	if !errors.Is(err, ErrWalletNotFound) {
		return nil, false, err
	}

	newWallet := &model.Wallet{
		UserID:  userID,
		Balance: 0,
	}

	// 并发创建时以唯一索引兜底，冲突方静默放弃
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet)

	if result.Error != nil {
		return nil, false, result.Error
	}

	created := result.RowsAffected > 0

	wallet, err = r.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, false, err
	}
	return wallet, created, nil
}

// Deduct 扣减积分
// 【关键点】条件更新把「余额检查 + 扣减」压成一条 SQL，
// balance >= amount 保证余额永不为负，version 防止并发互踩
func (r *WalletRepository) Deduct(ctx context.Context, tx *gorm.DB, userID int64, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND balance >= ? AND version = ?", userID, amount, version).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance - ?", amount),
			"lifetime_spent": gorm.Expr("lifetime_spent + ?", amount),
			"version":        gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		wallet, err := r.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 增加积分（发放/退款共用），无条件成功
func (r *WalletRepository) Increase(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"lifetime_earned": gorm.Expr("lifetime_earned + ?", amount),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}
