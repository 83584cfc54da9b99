package repository

import (
	"context"
	"errors"
	"time"

	"kirato/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrConversationNotFound = errors.New("会话不存在")

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByKey(ctx context.Context, convKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("conv_key = ?", convKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) GetOrCreate(ctx context.Context, sellerID, buyerID int64) (*model.Conversation, error) {
	convKey := model.ConvKey(sellerID, buyerID)
	conv, err := r.GetByKey(ctx, convKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, err
	}

	newConv := &model.Conversation{
		ConvKey:        convKey,
		SellerID:       sellerID,
		BuyerID:        buyerID,
		HandoffMode:    model.HandoffModeAI,
		SellerPresence: model.PresenceOffline,
		AIEnabled:      true,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conv_key"}},
			DoNothing: true,
		}).
		Create(newConv).Error
	if err != nil {
		return nil, err
	}

	return r.GetByKey(ctx, convKey)
}

// TouchOnMessage 消息落库后刷新会话摘要
// 买家消息未读数 +1，卖家消息清零，AI 消息不动未读数
func (r *ConversationRepository) TouchOnMessage(ctx context.Context, tx *gorm.DB, convKey, sender, text string, at time.Time) error {
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"last_message_at":   at,
		"last_message_text": text,
	}
	switch sender {
	case model.SenderBuyer:
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	case model.SenderSeller:
		updates["unread_count"] = 0
	}

	result := tx.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("conv_key = ?", convKey).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) SetHandoff(ctx context.Context, convKey, mode string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("conv_key = ?", convKey).
		Update("handoff_mode", mode)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SetPresenceBySeller 批量校准该卖家所有会话的在线状态
// 返回实际翻转的会话数，没有变化的会话不产生写放大
func (r *ConversationRepository) SetPresenceBySeller(ctx context.Context, sellerID int64, presence string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("seller_id = ? AND seller_presence != ?", sellerID, presence).
		Update("seller_presence", presence)
	return result.RowsAffected, result.Error
}

// DistinctSellerIDs 所有会话涉及的卖家ID（在线状态巡检用）
func (r *ConversationRepository) DistinctSellerIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Distinct("seller_id").
		Pluck("seller_id", &ids).Error
	return ids, err
}

func (r *ConversationRepository) ListBySeller(ctx context.Context, sellerID int64) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

func (r *ConversationRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("last_message_at DESC").
		Find(&convs).Error
	return convs, err
}

// ============================================================
// 消息
// ============================================================

func (r *ConversationRepository) CreateMessage(ctx context.Context, tx *gorm.DB, msg *model.ChatMessage) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// ListMessages 会话消息，按时间正序
func (r *ConversationRepository) ListMessages(ctx context.Context, convKey string, page, pageSize int) ([]*model.ChatMessage, int64, error) {
	var messages []*model.ChatMessage
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ChatMessage{}).Where("conv_key = ?", convKey)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error

	return messages, total, err
}
