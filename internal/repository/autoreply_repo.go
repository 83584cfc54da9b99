package repository

import (
	"context"
	"time"

	"kirato/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AutoReplyRepository struct {
	db *gorm.DB
}

func NewAutoReplyRepository(db *gorm.DB) *AutoReplyRepository {
	return &AutoReplyRepository{db: db}
}

// Enqueue 排入一条延迟自动回复任务
// trigger_message_id 唯一索引兜底：同一条买家消息重复入队时静默忽略
func (r *AutoReplyRepository) Enqueue(ctx context.Context, tx *gorm.DB, task *model.AutoReplyTask) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trigger_message_id"}},
			DoNothing: true,
		}).
		Create(task).Error
}

func (r *AutoReplyRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*model.AutoReplyTask, error) {
	var tasks []*model.AutoReplyTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", model.AutoReplyStatusPending, now).
		Order("due_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// MarkStatus 条件更新（仅允许从 PENDING 出发），并发执行时只有一方生效
func (r *AutoReplyRepository) MarkStatus(ctx context.Context, id int64, status string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AutoReplyTask{}).
		Where("id = ? AND status = ?", id, model.AutoReplyStatusPending).
		Update("status", status)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
