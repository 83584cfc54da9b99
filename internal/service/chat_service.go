package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kirato/internal/config"
	"kirato/internal/infrastructure/broadcast"
	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrEmptyMessage   = errors.New("消息内容不能为空")
	ErrInvalidSender  = errors.New("非法的消息发送方")
	ErrInvalidHandoff = errors.New("非法的接管模式")
)

// ChatService 买卖家会话服务
//
// 卖家在线状态以 Redis 心跳键为准（卖家端打开会话页每隔固定间隔上报一次，
// 页面关闭后键到期自动过期），Conversation.SellerPresence 列只是落库镜像，
// 由 PresenceSweep 任务定期校准
type ChatService struct {
	db            *gorm.DB
	cfg           *config.Config
	convRepo      *repository.ConversationRepository
	autoReplyRepo *repository.AutoReplyRepository
	broadcaster   broadcast.Broadcaster
	responder     Responder
	redisClient   *redis.Client
}

func NewChatService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, broadcaster broadcast.Broadcaster, responder Responder) *ChatService {
	return &ChatService{
		db:            db,
		cfg:           cfg,
		convRepo:      repository.NewConversationRepository(db),
		autoReplyRepo: repository.NewAutoReplyRepository(db),
		broadcaster:   broadcaster,
		responder:     responder,
		redisClient:   redisClient,
	}
}

func presenceKey(sellerID int64) string {
	return fmt.Sprintf("kirato:presence:seller:%d", sellerID)
}

// SendMessage 发消息
// 消息落库 + 会话摘要刷新 + 自动回复排队在同一事务里完成，
// 之后向广播通道发 NEW_MESSAGE（订阅方收到后回读数据库，不信任事件负载）
func (s *ChatService) SendMessage(ctx context.Context, sellerID, buyerID int64, sender, text string) (*model.ChatMessage, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if sender != model.SenderBuyer && sender != model.SenderSeller && sender != model.SenderAI {
		return nil, ErrInvalidSender
	}

	conv, err := s.convRepo.GetOrCreate(ctx, sellerID, buyerID)
	if err != nil {
		return nil, fmt.Errorf("获取会话失败: %w", err)
	}

	// 在线状态以 Redis 心跳为准，列值可能滞后一个巡检周期
	conv.SellerPresence = s.sellerPresence(ctx, conv)

	now := time.Now()
	msg := &model.ChatMessage{
		ID:        uuid.NewString(),
		ConvKey:   conv.ConvKey,
		Sender:    sender,
		Text:      text,
		CreatedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.convRepo.CreateMessage(ctx, tx, msg); err != nil {
			return fmt.Errorf("消息落库失败: %w", err)
		}

		if err := s.convRepo.TouchOnMessage(ctx, tx, conv.ConvKey, sender, text, now); err != nil {
			return err
		}

		// 买家消息 + AI 接管 + 卖家离线 + 开关打开 => 排一条延迟回复任务
		// trigger_message_id 唯一索引保证一条消息最多触发一次
		if conv.ShouldAutoReply(sender) {
			task := &model.AutoReplyTask{
				ConvKey:          conv.ConvKey,
				TriggerMessageID: msg.ID,
				DueAt:            now.Add(time.Duration(s.cfg.Business.AutoReplyDelaySecond) * time.Second),
				Status:           model.AutoReplyStatusPending,
			}
			if err := s.autoReplyRepo.Enqueue(ctx, tx, task); err != nil {
				return fmt.Errorf("自动回复排队失败: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.broadcaster.Publish(ctx, broadcast.Event{
		Type:    broadcast.EventNewMessage,
		ConvKey: conv.ConvKey,
		Sender:  sender,
	}); err != nil {
		// 广播失败不影响消息本身，订阅方下次回读能追上
		logrus.Warnf("消息广播失败: convKey=%s, err=%v", conv.ConvKey, err)
	}

	return msg, nil
}

// Heartbeat 卖家在线心跳
// 会话页打开期间周期性调用，TTL 内没有下一次心跳即视为离线
func (s *ChatService) Heartbeat(ctx context.Context, sellerID int64) error {
	if s.redisClient == nil {
		return nil
	}
	ttl := time.Duration(s.cfg.Business.PresenceTTLSecond) * time.Second
	if err := s.redisClient.Set(ctx, presenceKey(sellerID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("心跳上报失败: %w", err)
	}

	// 列值同步为在线，下线靠巡检任务回收
	changed, err := s.convRepo.SetPresenceBySeller(ctx, sellerID, model.PresenceOnline)
	if err != nil {
		return err
	}
	if changed > 0 {
		if err := s.broadcaster.Publish(ctx, broadcast.Event{
			Type:     broadcast.EventPresenceChanged,
			SellerID: sellerID,
			Presence: model.PresenceOnline,
		}); err != nil {
			logrus.Warnf("在线状态广播失败: sellerID=%d, err=%v", sellerID, err)
		}
	}
	return nil
}

// SellerOnline 查询卖家是否在线
// 未配置 Redis 时退化为读落库镜像列
func (s *ChatService) SellerOnline(ctx context.Context, sellerID int64) (bool, error) {
	if s.redisClient == nil {
		convs, err := s.convRepo.ListBySeller(ctx, sellerID)
		if err != nil {
			return false, err
		}
		for _, conv := range convs {
			if conv.SellerPresence == model.PresenceOnline {
				return true, nil
			}
		}
		return false, nil
	}

	n, err := s.redisClient.Exists(ctx, presenceKey(sellerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ChatService) sellerPresence(ctx context.Context, conv *model.Conversation) string {
	if s.redisClient == nil {
		return conv.SellerPresence
	}
	online, err := s.SellerOnline(ctx, conv.SellerID)
	if err != nil {
		logrus.Warnf("查询卖家在线状态失败，按离线处理: sellerID=%d, err=%v", conv.SellerID, err)
		return model.PresenceOffline
	}
	if online {
		return model.PresenceOnline
	}
	return model.PresenceOffline
}

// SetHandoff 切换会话接管模式（ai / seller）
func (s *ChatService) SetHandoff(ctx context.Context, convKey, mode string) error {
	if mode != model.HandoffModeAI && mode != model.HandoffModeSeller {
		return ErrInvalidHandoff
	}

	if err := s.convRepo.SetHandoff(ctx, convKey, mode); err != nil {
		return err
	}

	if err := s.broadcaster.Publish(ctx, broadcast.Event{
		Type:    broadcast.EventHandoffChanged,
		ConvKey: convKey,
	}); err != nil {
		logrus.Warnf("接管模式广播失败: convKey=%s, err=%v", convKey, err)
	}
	return nil
}

func (s *ChatService) GetConversation(ctx context.Context, convKey string) (*model.Conversation, error) {
	return s.convRepo.GetByKey(ctx, convKey)
}

func (s *ChatService) ListSellerConversations(ctx context.Context, sellerID int64) ([]*model.Conversation, error) {
	return s.convRepo.ListBySeller(ctx, sellerID)
}

func (s *ChatService) ListBuyerConversations(ctx context.Context, buyerID int64) ([]*model.Conversation, error) {
	return s.convRepo.ListByBuyer(ctx, buyerID)
}

func (s *ChatService) ListMessages(ctx context.Context, convKey string, page, pageSize int) ([]*model.ChatMessage, int64, error) {
	return s.convRepo.ListMessages(ctx, convKey, page, pageSize)
}

// ProcessDueAutoReplies 执行到期的自动回复任务（AutoResponder 任务入口）
//
// 执行前重新检查会话状态：延迟窗口内卖家可能已接管或上线，
// 这种情况任务作废（SKIPPED）而不是照发。状态流转用 CAS 认领，
// 多实例同时扫描也只会有一方发出回复
func (s *ChatService) ProcessDueAutoReplies(ctx context.Context, now time.Time, limit int) (int, error) {
	tasks, err := s.autoReplyRepo.GetDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, task := range tasks {
		conv, err := s.convRepo.GetByKey(ctx, task.ConvKey)
		if err != nil {
			logrus.Errorf("[AutoResponder] 查询会话失败: convKey=%s, err=%v", task.ConvKey, err)
			continue
		}

		conv.SellerPresence = s.sellerPresence(ctx, conv)
		if !conv.ShouldAutoReply(model.SenderBuyer) {
			if _, err := s.autoReplyRepo.MarkStatus(ctx, task.ID, model.AutoReplyStatusSkipped); err != nil {
				logrus.Errorf("[AutoResponder] 任务作废失败: id=%d, err=%v", task.ID, err)
			}
			continue
		}

		claimed, err := s.autoReplyRepo.MarkStatus(ctx, task.ID, model.AutoReplyStatusSent)
		if err != nil {
			logrus.Errorf("[AutoResponder] 认领任务失败: id=%d, err=%v", task.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		reply := s.responder.GenerateReply(conv, conv.LastMessageText)
		if _, err := s.SendMessage(ctx, conv.SellerID, conv.BuyerID, model.SenderAI, reply); err != nil {
			logrus.Errorf("[AutoResponder] 发送自动回复失败: convKey=%s, err=%v", task.ConvKey, err)
			continue
		}
		sent++
	}

	return sent, nil
}
