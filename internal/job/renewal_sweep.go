package job

import (
	"context"
	"time"

	"kirato/internal/config"
	"kirato/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RenewalSweep 订阅续费扫描
//
// 续费检查有两条触发路径：读订阅/钱包时顺带检查（renew_on_read 开关），
// 以及这里的定时扫描兜底——用户长期不打开应用也能按时拿到月度积分。
// 两条路径并发到达时由 CAS 保证每个周期只发一次
type RenewalSweep struct {
	subscriptionService *service.SubscriptionService
	cfg                 *config.Config
	cron                *cron.Cron
	batchSize           int
}

func NewRenewalSweep(subscriptionService *service.SubscriptionService, cfg *config.Config) *RenewalSweep {
	return &RenewalSweep{
		subscriptionService: subscriptionService,
		cfg:                 cfg,
		cron:                cron.New(),
		batchSize:           500,
	}
}

func (j *RenewalSweep) Start(ctx context.Context) {
	spec := j.cfg.Business.RenewalCron
	if spec == "" {
		spec = "0 * * * *" // 默认每小时整点
	}

	_, err := j.cron.AddFunc(spec, func() {
		j.sweep(ctx)
	})
	if err != nil {
		logrus.Fatalf("[RenewalSweep] cron 表达式非法: %q: %v", spec, err)
	}

	j.cron.Start()
	logrus.Infof("[RenewalSweep] 续费扫描任务启动: cron=%q", spec)

	<-ctx.Done()
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
	logrus.Info("[RenewalSweep] 收到停止信号，任务退出")
}

func (j *RenewalSweep) sweep(ctx context.Context) {
	renewed, err := j.subscriptionService.RenewDueSubscriptions(ctx, time.Now(), j.batchSize)
	if err != nil {
		logrus.Errorf("[RenewalSweep] 续费扫描失败: %v", err)
		return
	}
	if renewed > 0 {
		logrus.Infof("[RenewalSweep] 本轮完成 %d 个续费周期", renewed)
	}
}
