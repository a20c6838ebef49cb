package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"viacrm_backend/internal/email"
	"viacrm_backend/internal/notification"
	"viacrm_backend/internal/scheduler"
	"viacrm_backend/platform/config"
	"viacrm_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsEmailEnabled() {
		log.Warn("SMTP or MANAGER_NOTIFY_EMAIL not configured; reentry alerts will be dropped")
	}
	mailer := notification.NewMailer(email.NewSender(cfg), cfg.GetManagerNotifyEmail(), log)

	worker, err := scheduler.NewWorker(cfg, mailer, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	if err := worker.Run(ctx); err != nil {
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
