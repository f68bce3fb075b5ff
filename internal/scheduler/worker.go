package scheduler

import (
	"context"
	"fmt"

	"booking_portal_backend/internal/bookings/service"
	"booking_portal_backend/internal/bookings/sweep"
	"booking_portal_backend/platform/config"
	"booking_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker processes booking tasks: the periodic sweep and the initial
// confirmation-request mails.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	svc     *service.Service
	sweeper *sweep.Sweeper
	log     *logger.Logger
}

// NewWorker creates the asynq worker.
func NewWorker(cfg config.SchedulerConfig, svc *service.Service, sweeper *sweep.Sweeper, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		svc:     svc,
		sweeper: sweeper,
		log:     log,
	}

	mux.HandleFunc(TaskBookingSweep, w.handleBookingSweep)
	mux.HandleFunc(TaskBookingInitialRequest, w.handleBookingInitialRequest)

	return w, nil
}

func (w *Worker) handleBookingSweep(ctx context.Context, _ *asynq.Task) error {
	result, err := w.sweeper.Run(ctx)
	if err != nil {
		return err
	}
	if result.Skipped {
		w.log.Info("sweep skipped, lock busy", "run_id", result.RunID)
	}
	return nil
}

func (w *Worker) handleBookingInitialRequest(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingInitialRequestPayload(task)
	if err != nil {
		return err
	}

	confirmationID, err := uuid.Parse(payload.ConfirmationID)
	if err != nil {
		return err
	}

	return w.svc.SendInitialRequest(ctx, confirmationID)
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
