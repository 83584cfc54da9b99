package job

import (
	"context"
	"time"

	"kirato/internal/service"

	"github.com/sirupsen/logrus"
)

// AutoResponder 延迟自动回复任务
// 扫描到期的 auto_reply_task，由 ChatService 完成二次校验和回复发送
type AutoResponder struct {
	chatService *service.ChatService
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewAutoResponder(chatService *service.ChatService) *AutoResponder {
	return &AutoResponder{
		chatService: chatService,
		stopCh:      make(chan struct{}),
		interval:    time.Second,
		batchSize:   50,
	}
}

func (j *AutoResponder) Start(ctx context.Context) {
	logrus.Info("[AutoResponder] 自动回复任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("[AutoResponder] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			logrus.Info("[AutoResponder] 任务停止")
			return
		case <-ticker.C:
			sent, err := j.chatService.ProcessDueAutoReplies(ctx, time.Now(), j.batchSize)
			if err != nil {
				logrus.Errorf("[AutoResponder] 处理到期任务失败: %v", err)
				continue
			}
			if sent > 0 {
				logrus.Infof("[AutoResponder] 本轮发出 %d 条自动回复", sent)
			}
		}
	}
}

func (j *AutoResponder) Stop() {
	close(j.stopCh)
}
