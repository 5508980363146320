package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the daily report on a cron spec evaluated in UTC.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
	logger     *zap.Logger
}

func New(spec string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start registers the report job. Without a report function it is a no-op.
func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		s.logger.Warn("report function not set, scheduler will not generate reports")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.Trigger); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Trigger runs the report now, in the caller's goroutine.
func (s *Scheduler) Trigger() {
	if s.reportFunc == nil {
		return
	}
	s.logger.Info("generating daily report")
	if err := s.reportFunc(s.ctx); err != nil {
		s.logger.Error("daily report generation failed", zap.Error(err))
	}
}

// Stop waits for a running job to finish, then cancels its context.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
