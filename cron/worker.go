package cron

import (
	"context"
	"fmt"
	"time"

	"bloomdispatch/config"
	settingsRepo "bloomdispatch/database/repository/settings"
	"bloomdispatch/models"
	"bloomdispatch/services/sweep"
	"bloomdispatch/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// NotificationSender delivers one queued notification.
type NotificationSender interface {
	Send(ctx context.Context, p models.NotificationPayload) (string, error)
}

// Worker runs queued notification deliveries and the periodic timeout sweep.
type Worker struct {
	Sender   NotificationSender
	Sweeper  *sweep.Sweeper
	Settings settingsRepo.SettingsRepository
	Logger   *zap.Logger
}

// RedisOpt is the asynq connection shared by the API (enqueue) and the worker.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewMux routes task types to handlers.
func (w *Worker) NewMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendNotification, w.handleNotificationTask)
	mux.HandleFunc(tasks.TypeTimeoutSweep, w.handleSweepTask)
	return mux
}

func (w *Worker) handleNotificationTask(ctx context.Context, task *asynq.Task) error {
	p, err := tasks.ParseNotificationTask(task)
	if err != nil {
		w.Logger.Error("invalid notification payload", zap.Error(err))
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}

	id, err := w.Sender.Send(ctx, p)
	if err != nil {
		w.Logger.Warn("notification delivery failed",
			zap.String("notification", p.ID),
			zap.String("kind", p.Kind),
			zap.String("role", p.Role),
			zap.String("booking_id", p.BookingID),
			zap.Error(err))
		return fmt.Errorf("send notification %s: %v: %w", p.ID, err, asynq.SkipRetry)
	}
	w.Logger.Debug("notification delivered", zap.String("notification", p.ID), zap.String("message_id", id))
	return nil
}

func (w *Worker) handleSweepTask(ctx context.Context, _ *asynq.Task) error {
	summary, err := w.Sweeper.RunWithSettings(ctx, w.Settings)
	if err != nil {
		w.Logger.Error("scheduled timeout sweep failed", zap.Error(err))
		return fmt.Errorf("timeout sweep: %v: %w", err, asynq.SkipRetry)
	}
	w.Logger.Info("scheduled timeout sweep done",
		zap.Int("processed", summary.Processed),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("failed", summary.Failed))
	return nil
}

// Run starts the asynq server and the sweep scheduler and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context, schedule string) error {
	redisOpt := RedisOpt()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			tasks.QueueNotifications: 6,
			tasks.QueueSweep:         3,
			"default":                1,
		},
		Logger: w.Logger.Sugar(),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   w.Logger.Sugar(),
	})
	if schedule != "" {
		entryID, err := scheduler.Register(schedule, tasks.NewTimeoutSweepTask())
		if err != nil {
			return fmt.Errorf("failed to register sweep schedule %q: %w", schedule, err)
		}
		w.Logger.Info("timeout sweep scheduled", zap.String("schedule", schedule), zap.String("entry", entryID))
	}

	if err := w.startWithRetry(srv); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	<-ctx.Done()
	w.Logger.Info("worker shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
	return nil
}

func (w *Worker) startWithRetry(srv *asynq.Server) error {
	const maxAttempts = 5
	mux := w.NewMux()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = srv.Start(mux); err == nil {
			w.Logger.Info("async worker started")
			return nil
		}
		w.Logger.Warn("failed to start async worker",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		time.Sleep(time.Duration(attempt*2) * time.Second)
	}
	return fmt.Errorf("async worker did not start after %d attempts: %w", maxAttempts, err)
}
