package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bloomdispatch/models"
	"bloomdispatch/services/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskEnqueuer is the part of *asynq.Client the dispatcher needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher turns booking events into queued push notifications.
type QueueDispatcher struct {
	Queue    TaskEnqueuer
	Links    LinkBuilder
	OpsTopic string

	// DefaultLocation renders start times of bookings without a timezone. Nil means UTC.
	DefaultLocation *time.Location
	Logger          *zap.Logger
}

func NewQueueDispatcher(queue TaskEnqueuer, links LinkBuilder, opsTopic string, loc *time.Location, logger *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{Queue: queue, Links: links, OpsTopic: opsTopic, DefaultLocation: loc, Logger: logger}
}

func (d *QueueDispatcher) BookingConfirmed(ctx context.Context, b *models.Booking, p *models.Provider) {
	data := bookingData(b)
	data["provider_id"] = p.ID

	d.toProvider(ctx, b, p, "booking.confirmed",
		"Booking confirmed",
		fmt.Sprintf("You're confirmed for %s on %s.", b.Reference, d.formatStart(b)),
		data)
	d.toCustomer(ctx, b, "booking.confirmed",
		"Your booking is confirmed",
		fmt.Sprintf("%s will look after your appointment on %s.", providerName(p), d.formatStart(b)),
		data)
	d.toOps(ctx, b, "booking.confirmed",
		"Booking confirmed",
		fmt.Sprintf("%s confirmed by %s (%s).", b.Reference, providerName(p), p.ID),
		data)
}

func (d *QueueDispatcher) BookingDeclined(ctx context.Context, b *models.Booking, reason string) {
	data := bookingData(b)
	data["reason"] = reason

	d.toCustomer(ctx, b, "booking.declined",
		"We couldn't confirm your booking",
		fmt.Sprintf("Unfortunately no provider is available for %s on %s.", b.Reference, d.formatStart(b)),
		data)
	d.toOps(ctx, b, "booking.declined",
		"Booking declined",
		fmt.Sprintf("%s declined: %s.", b.Reference, reason),
		data)
}

func (d *QueueDispatcher) AlternatesSought(ctx context.Context, b *models.Booking, candidates []models.Provider, window time.Duration) {
	minutes := int(window / time.Minute)
	for i := range candidates {
		c := &candidates[i]
		data := bookingData(b)
		data["accept_url"] = d.Links.AcceptURL(b.Reference, c.ID)
		data["decline_url"] = d.Links.DeclineURL(b.Reference, c.ID)
		data["window_minutes"] = strconv.Itoa(minutes)

		d.toProvider(ctx, b, c, "booking.offer",
			"New booking available",
			fmt.Sprintf("%s on %s is looking for a provider. Respond within %d minutes.", b.Reference, d.formatStart(b), minutes),
			data)
	}

	data := bookingData(b)
	data["candidates"] = strconv.Itoa(len(candidates))
	d.toCustomer(ctx, b, "booking.seeking_alternate",
		"Finding you another provider",
		fmt.Sprintf("Your requested provider is unavailable, so we're asking %d other providers about %s.", len(candidates), b.Reference),
		data)
}

func (d *QueueDispatcher) toProvider(ctx context.Context, b *models.Booking, p *models.Provider, kind, title, body string, data map[string]string) {
	if p.PushToken == "" {
		d.Logger.Warn("provider has no push token", zap.String("provider", p.ID), zap.String("booking", b.Reference))
		return
	}
	d.enqueue(ctx, models.NotificationPayload{
		Kind: kind, Role: models.RecipientProvider, Token: p.PushToken,
		Title: title, Body: body, Data: data, BookingID: b.ID,
	})
}

func (d *QueueDispatcher) toCustomer(ctx context.Context, b *models.Booking, kind, title, body string, data map[string]string) {
	if b.Customer.PushToken == "" {
		d.Logger.Warn("customer has no push token", zap.String("booking", b.Reference))
		return
	}
	d.enqueue(ctx, models.NotificationPayload{
		Kind: kind, Role: models.RecipientCustomer, Token: b.Customer.PushToken,
		Title: title, Body: body, Data: data, BookingID: b.ID,
	})
}

func (d *QueueDispatcher) toOps(ctx context.Context, b *models.Booking, kind, title, body string, data map[string]string) {
	if d.OpsTopic == "" {
		return
	}
	d.enqueue(ctx, models.NotificationPayload{
		Kind: kind, Role: models.RecipientOps, Topic: d.OpsTopic,
		Title: title, Body: body, Data: data, BookingID: b.ID,
	})
}

func (d *QueueDispatcher) enqueue(ctx context.Context, p models.NotificationPayload) {
	p.ID = uuid.New().String()
	if p.Data == nil {
		p.Data = map[string]string{}
	}
	p.Data["role"] = p.Role

	task, err := tasks.NewNotificationTask(p)
	if err != nil {
		d.Logger.Error("failed to build notification task", zap.String("kind", p.Kind), zap.Error(err))
		return
	}
	if _, err := d.Queue.EnqueueContext(ctx, task); err != nil {
		d.Logger.Error("failed to enqueue notification",
			zap.String("kind", p.Kind),
			zap.String("role", p.Role),
			zap.String("booking_id", p.BookingID),
			zap.Error(err))
	}
}

func bookingData(b *models.Booking) map[string]string {
	return map[string]string{
		"booking_id":        b.ID,
		"booking_reference": b.Reference,
		"scheduled_at":      b.ScheduledAt.UTC().Format(time.RFC3339),
	}
}

func (d *QueueDispatcher) formatStart(b *models.Booking) string {
	return b.LocalStart(d.DefaultLocation).Format("Mon 2 Jan 15:04 MST")
}

func providerName(p *models.Provider) string {
	if p.Name != "" {
		return p.Name
	}
	return "Your provider"
}
