package job

import (
	"context"
	"fmt"
	"time"

	"kirato/internal/infrastructure/broadcast"
	"kirato/internal/model"
	"kirato/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PresenceSweep 卖家在线状态巡检
// 心跳键只活在 Redis 里，落库的 SellerPresence 列是给列表页和
// 自动回复兜底用的镜像。巡检逐个卖家对比心跳键是否存在，
// 把不一致的列值校准过来（心跳过期 -> offline，心跳存在 -> online）
type PresenceSweep struct {
	db          *gorm.DB
	redisClient *redis.Client
	convRepo    *repository.ConversationRepository
	broadcaster broadcast.Broadcaster
	stopCh      chan struct{}
	interval    time.Duration
}

func NewPresenceSweep(db *gorm.DB, redisClient *redis.Client, broadcaster broadcast.Broadcaster) *PresenceSweep {
	return &PresenceSweep{
		db:          db,
		redisClient: redisClient,
		convRepo:    repository.NewConversationRepository(db),
		broadcaster: broadcaster,
		stopCh:      make(chan struct{}),
		interval:    15 * time.Second,
	}
}

func (j *PresenceSweep) Start(ctx context.Context) {
	logrus.Info("[PresenceSweep] 在线状态巡检任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("[PresenceSweep] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			logrus.Info("[PresenceSweep] 任务停止")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *PresenceSweep) Stop() {
	close(j.stopCh)
}

func (j *PresenceSweep) sweep(ctx context.Context) {
	sellerIDs, err := j.convRepo.DistinctSellerIDs(ctx)
	if err != nil {
		logrus.Errorf("[PresenceSweep] 查询卖家列表失败: %v", err)
		return
	}

	for _, sellerID := range sellerIDs {
		key := fmt.Sprintf("kirato:presence:seller:%d", sellerID)
		n, err := j.redisClient.Exists(ctx, key).Result()
		if err != nil {
			logrus.Errorf("[PresenceSweep] 查询心跳键失败: sellerID=%d, err=%v", sellerID, err)
			continue
		}

		presence := model.PresenceOffline
		if n > 0 {
			presence = model.PresenceOnline
		}

		changed, err := j.convRepo.SetPresenceBySeller(ctx, sellerID, presence)
		if err != nil {
			logrus.Errorf("[PresenceSweep] 校准在线状态失败: sellerID=%d, err=%v", sellerID, err)
			continue
		}
		if changed > 0 {
			if err := j.broadcaster.Publish(ctx, broadcast.Event{
				Type:     broadcast.EventPresenceChanged,
				SellerID: sellerID,
				Presence: presence,
			}); err != nil {
				logrus.Warnf("[PresenceSweep] 在线状态广播失败: sellerID=%d, err=%v", sellerID, err)
			}
		}
	}
}
