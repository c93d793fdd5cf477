package worker

import (
	"context"
	"sync"
	"time"

	"github.com/feichai0017/format-converter/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// BaseWorker 周期性任务的公共部分
type BaseWorker struct {
	logger   logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	return nil
}
