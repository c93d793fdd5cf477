package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/format-converter/pkg/logger"
)

// Sweeper removes stored files last modified before threshold.
type Sweeper interface {
	CleanupBefore(ctx context.Context, threshold time.Time) (int, error)
}

var _ Worker = (*Janitor)(nil)

// Janitor 定期清理上传目录中遗留的临时文件(进程崩溃或异常退出时残留)
type Janitor struct {
	BaseWorker
	sweeper Sweeper
	cfg     Config
	now     func() time.Time
}

func NewJanitor(cfg *Config, sweeper Sweeper, log logger.Logger) (*Janitor, error) {
	if sweeper == nil {
		return nil, errors.New("janitor requires a sweeper")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid sweep interval %s", cfg.Interval)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("invalid retention %s", cfg.Retention)
	}

	return &Janitor{
		BaseWorker: BaseWorker{
			logger:   log,
			stopChan: make(chan struct{}),
		},
		sweeper: sweeper,
		cfg:     *cfg,
		now:     time.Now,
	}, nil
}

// Start sweeps once, then on every tick until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.logger.Info("Janitor started",
		logger.Duration("interval", j.cfg.Interval),
		logger.Duration("retention", j.cfg.Retention),
	)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		j.Sweep(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("Janitor stopped")
			return nil
		case <-j.stopChan:
			j.logger.Info("Janitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep 执行一次清理
func (j *Janitor) Sweep(ctx context.Context) int {
	removed, err := j.sweeper.CleanupBefore(ctx, j.now().Add(-j.cfg.Retention))
	if err != nil && !errors.Is(err, context.Canceled) {
		j.logger.Error("Sweep failed", logger.Error(err))
	}
	if removed > 0 {
		j.logger.Info("Removed stale temp files", logger.Int("count", removed))
	}
	return removed
}
