package scheduler

import (
	"context"
	"fmt"

	"viacrm_backend/platform/config"
	"viacrm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ReentryHandler delivers a reentry alert.
type ReentryHandler interface {
	HandleReentry(ctx context.Context, payload ReentryNotifyPayload) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	reentry ReentryHandler
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, reentry ReentryHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:  server,
		reentry: reentry,
		log:     log,
	}
	w.mux = w.newMux()
	return w, nil
}

func (w *Worker) newMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskReentryNotify, w.handleReentryNotify)
	return mux
}

func (w *Worker) handleReentryNotify(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReentryNotifyPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if w.reentry == nil {
		return nil
	}
	if err := w.reentry.HandleReentry(ctx, payload); err != nil {
		w.log.Warn("reentry notification failed", "lead_id", payload.LeadID, "error", err)
		return err
	}
	return nil
}

// Run blocks until ctx is cancelled or the server fails.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
		return err
	}
	return nil
}
