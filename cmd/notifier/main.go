package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/roombook/internal/notify"
	"github.com/diagnosis/roombook/pkg/config"
	"github.com/diagnosis/roombook/pkg/logger"
)

// The notifier worker drains queued OTP messages published by the API when
// NOTIFY_DRIVER=amqp and delivers them with NOTIFY_WORKER_DRIVER.
func main() {
	cfg := config.Load()

	if cfg.Email.WorkerDriver == "amqp" {
		logger.Error("NOTIFY_WORKER_DRIVER cannot be amqp, the worker would requeue its own input")
		os.Exit(1)
	}
	deliver, err := notify.Build(cfg.Email.WorkerDriver, cfg.Email, cfg.AMQP)
	if err != nil {
		logger.Error("Failed to set up delivery", "error", err, "driver", cfg.Email.WorkerDriver)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting notifier worker", "queue", cfg.AMQP.Queue, "driver", cfg.Email.WorkerDriver)
	if err := notify.Consume(ctx, cfg.AMQP.URL, cfg.AMQP.Queue, deliver); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Notifier worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Notifier worker stopped")
}
