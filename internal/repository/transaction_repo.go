package repository

import (
	"context"

	"kirato/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CreditTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// TrimToCap 裁剪流水，只保留该用户最新 cap 条
// 以自增主键代替 created_at 排序（同一秒内多笔也不会裁错），
// 找到第 cap 新的一条作为阈值，删除更早的
func (r *TransactionRepository) TrimToCap(ctx context.Context, tx *gorm.DB, userID int64, cap int) error {
	if cap <= 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}

	var threshold model.CreditTransaction
	err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Offset(cap - 1).
		Limit(1).
		First(&threshold).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// 总数还没到上限，无需裁剪
			return nil
		}
		return err
	}

	return tx.WithContext(ctx).
		Where("user_id = ? AND id < ?", userID, threshold.ID).
		Delete(&model.CreditTransaction{}).Error
}

// ListByUserID 流水列表，最新的排前面
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	var transactions []*model.CreditTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CreditTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.CreditTransaction, error) {
	var trans model.CreditTransaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&trans).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// SumAmountByUserID 该用户现存流水的金额合计（对账用）
func (r *TransactionRepository) SumAmountByUserID(ctx context.Context, userID int64) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Select("SUM(amount)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
