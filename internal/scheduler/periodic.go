package scheduler

import (
	"context"
	"fmt"

	"booking_portal_backend/platform/config"
	"booking_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the sweep task on the configured cron schedule.
// It runs alongside the worker in the scheduler process; the advisory
// lock inside the sweep keeps extra replicas harmless.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewPeriodic creates the periodic sweep enqueuer.
func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	scheduler := asynq.NewScheduler(opt, nil)
	if _, err := scheduler.Register(cfg.GetSweepCronSpec(), NewBookingSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register sweep schedule: %w", err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run enqueues on schedule until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic sweep scheduler stopped", "error", err)
	}
}
