package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ============================================================================
// 会话事件广播
// ============================================================================
//
// 前端多开标签页（或服务多实例）之间的消息同步走 Redis Pub/Sub。
//
// 【重要】广播只是"有新东西了"的提醒，不是数据本身：
// 订阅方收到事件后必须回读数据库拿权威数据，不能直接信任事件负载。
// Pub/Sub 不保证送达也不保证跨订阅方的全局顺序，短暂的读偏差
// 会在各方回读后收敛，这个数据等级上是可接受的
//
// ============================================================================

const (
	ChannelChat = "kirato:chat:events"

	EventNewMessage      = "NEW_MESSAGE"
	EventHandoffChanged  = "HANDOFF_CHANGED"
	EventPresenceChanged = "PRESENCE_CHANGED"
)

// Event 广播事件，负载只带定位信息
type Event struct {
	Type     string `json:"type"`
	ConvKey  string `json:"conv_key,omitempty"`
	Sender   string `json:"sender,omitempty"`
	SellerID int64  `json:"seller_id,omitempty"`
	Presence string `json:"presence,omitempty"`
}

// Broadcaster 事件广播接口，测试时用 fake 实现替换
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
}

// RedisBroadcaster 基于 Redis Pub/Sub 的广播实现
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: ChannelChat}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, string(payload)).Err()
}

// Subscribe 订阅事件流，每收到一条调用一次 handler
// 阻塞运行直到 ctx 取消，一般在独立 goroutine 里调用
func (b *RedisBroadcaster) Subscribe(ctx context.Context, handler func(Event)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.Warnf("[Broadcast] 事件解析失败: %v", err)
				continue
			}
			handler(event)
		}
	}
}

// NoopBroadcaster 空实现（单机部署/测试）
type NoopBroadcaster struct{}

func (NoopBroadcaster) Publish(ctx context.Context, event Event) error { return nil }
