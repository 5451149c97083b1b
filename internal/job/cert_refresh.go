package job

import (
	"context"
	"time"

	"paycore/internal/provider"
	"paycore/pkg/logger"

	"go.uber.org/zap"
)

// CertRefreshJob 周期拉取微信支付平台证书
//
// 证书缓存是实例本地的，每个实例都要自己刷新，不走分布式锁。
// 单次刷新失败只记日志，旧证书继续用到下次成功为止。
type CertRefreshJob struct {
	downloader *provider.CertificateDownloader
	interval   time.Duration
}

func NewCertRefreshJob(downloader *provider.CertificateDownloader, interval time.Duration) *CertRefreshJob {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &CertRefreshJob{
		downloader: downloader,
		interval:   interval,
	}
}

// Start 启动时先同步拉一次，之后周期刷新直到 ctx 取消
func (j *CertRefreshJob) Start(ctx context.Context) {
	if err := j.downloader.Refresh(ctx); err != nil {
		logger.L.Error("首次拉取平台证书失败", zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.L.Info("证书刷新任务退出")
			return
		case <-ticker.C:
			if err := j.downloader.Refresh(ctx); err != nil {
				logger.L.Error("刷新平台证书失败", zap.Error(err))
			}
		}
	}
}
