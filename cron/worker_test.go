package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"bloomdispatch/database/repository/memory"
	"bloomdispatch/models"
	"bloomdispatch/services/booking"
	"bloomdispatch/services/matching"
	"bloomdispatch/services/notification"
	"bloomdispatch/services/sweep"
	"bloomdispatch/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []models.NotificationPayload
	err  error
}

func (s *fakeSender) Send(_ context.Context, p models.NotificationPayload) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, p)
	return "msg-1", nil
}

func TestNotificationTaskDelivered(t *testing.T) {
	sender := &fakeSender{}
	w := &Worker{Sender: sender, Logger: zap.NewNop()}

	task, err := tasks.NewNotificationTask(models.NotificationPayload{ID: "n1", Kind: "booking.offer", Token: "tok"})
	if err != nil {
		t.Fatalf("NewNotificationTask: %v", err)
	}
	if err := w.NewMux().ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].ID != "n1" {
		t.Fatalf("sent = %+v", sender.sent)
	}
}

func TestNotificationFailureIsNotRetried(t *testing.T) {
	w := &Worker{Sender: &fakeSender{err: errors.New("unregistered token")}, Logger: zap.NewNop()}

	task, _ := tasks.NewNotificationTask(models.NotificationPayload{ID: "n2", Token: "tok"})
	err := w.NewMux().ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}

	bad := asynq.NewTask(tasks.TypeSendNotification, []byte("{"))
	if err := w.NewMux().ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload err = %v", err)
	}
}

func TestSweepTaskRunsSweeper(t *testing.T) {
	logger := zap.NewNop()
	bookings := memory.NewBookingRepo(models.Booking{
		ID:                 "b1",
		Reference:          "BK-1",
		ScheduledAt:        time.Now().UTC().Add(72 * time.Hour),
		DurationMinutes:    60,
		AssignedProviderID: "p1",
		Status:             models.StatusRequested,
		ServiceTypeID:      "massage",
		CreatedAt:          time.Now().UTC().Add(-6 * time.Hour),
	})
	providers := memory.NewProviderRepo()
	rec := &notification.Recorder{}
	finder := &matching.DefaultCandidateFinder{ProviderRepo: providers, BookingRepo: bookings, DefaultLocation: time.UTC, Logger: logger}
	transitions := booking.NewTransitioner(bookings, rec, logger)

	w := &Worker{
		Sweeper:  sweep.NewSweeper(bookings, finder, transitions, sweep.Options{}, logger),
		Settings: memory.NewSettingsRepo(nil),
		Logger:   logger,
	}
	if err := w.NewMux().ProcessTask(context.Background(), tasks.NewTimeoutSweepTask()); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if got := bookings.Snapshot("b1"); got.Status != models.StatusDeclined {
		t.Fatalf("status = %s", got.Status)
	}
	if rec.Count(notification.EventDeclined) != 1 {
		t.Fatal("customer not notified")
	}
}
