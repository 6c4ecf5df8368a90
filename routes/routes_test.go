package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloomdispatch/database/repository/memory"
	"bloomdispatch/handlers"
	"bloomdispatch/models"
	"bloomdispatch/services/booking"
	"bloomdispatch/services/matching"
	"bloomdispatch/services/notification"
	"bloomdispatch/services/sweep"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fixture struct {
	router   *gin.Engine
	bookings *memory.BookingRepo
	notifier *notification.Recorder
}

func newFixture(adminToken string, bookings ...models.Booking) *fixture {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	bookingStore := memory.NewBookingRepo(bookings...)
	providers := memory.NewProviderRepo(models.Provider{ID: "p1", Name: "Alex", Active: true, ServiceTypeIDs: []string{"massage"}})
	settings := memory.NewSettingsRepo(nil)
	rec := &notification.Recorder{}

	finder := &matching.DefaultCandidateFinder{ProviderRepo: providers, BookingRepo: bookingStore, DefaultLocation: time.UTC, Logger: logger}
	transitions := booking.NewTransitioner(bookingStore, rec, logger)
	svc := booking.NewResponseService(bookingStore, providers, finder, transitions, nil, time.UTC, logger)
	sweeper := sweep.NewSweeper(bookingStore, finder, transitions, sweep.Options{DefaultLocation: time.UTC}, logger)

	r := gin.New()
	r.SetHTMLTemplate(handlers.ResponseTemplates())
	RegisterRoutes(r, &handlers.HandlerBundle{
		RespondHandler:  handlers.NewResponseHandler(svc, settings).RespondHandler,
		RunSweepHandler: handlers.NewSweepHandler(sweeper, settings).RunSweepHandler,
		HealthHandler:   handlers.HealthHandler,
		AdminToken:      adminToken,
	}, 1000)

	return &fixture{router: r, bookings: bookingStore, notifier: rec}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func requested(id string, created time.Time, fallback bool) models.Booking {
	return models.Booking{
		ID:                 id,
		Reference:          "BK-" + id,
		ScheduledAt:        time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour),
		DurationMinutes:    60,
		AssignedProviderID: "p1",
		Status:             models.StatusRequested,
		ServiceTypeID:      "massage",
		FallbackAllowed:    fallback,
		CreatedAt:          created,
	}
}

func TestRespondRouteConfirmsBooking(t *testing.T) {
	f := newFixture("secret", requested("b1", time.Now().UTC(), true))

	req := httptest.NewRequest(http.MethodGet, "/api/bookings/respond?action=accept&booking=BK-b1&therapist=p1", nil)
	req.Header.Set("Accept", "application/json")
	w := f.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if got := f.bookings.Snapshot("b1"); got.Status != models.StatusConfirmed || got.RespondingProviderID != "p1" {
		t.Fatalf("booking = %s/%q", got.Status, got.RespondingProviderID)
	}
	if f.notifier.Count(notification.EventConfirmed) != 1 {
		t.Fatal("confirmation not dispatched")
	}
}

func TestRespondRouteUnknownBooking(t *testing.T) {
	f := newFixture("secret")
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/bookings/respond?action=accept&booking=BK-missing&therapist=p1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSweepRouteRequiresToken(t *testing.T) {
	f := newFixture("secret")

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/internal/timeout-sweep", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/internal/timeout-sweep", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := f.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d", w.Code)
	}
}

func TestSweepRouteDisabledWithoutToken(t *testing.T) {
	f := newFixture("")
	req := httptest.NewRequest(http.MethodPost, "/api/internal/timeout-sweep", nil)
	req.Header.Set("Authorization", "Bearer anything")
	if w := f.do(req); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSweepRouteRunsSweep(t *testing.T) {
	f := newFixture("secret", requested("b1", time.Now().UTC().Add(-5*time.Hour), false))

	req := httptest.NewRequest(http.MethodPost, "/api/internal/timeout-sweep", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := f.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var summary sweep.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Processed != 1 || summary.Count(sweep.ActionDeclinedNoFallback) != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := f.bookings.Snapshot("b1"); got.Status != models.StatusDeclined {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestInterruptedSweepReportsPartialSummary(t *testing.T) {
	f := newFixture("secret", requested("b1", time.Now().UTC().Add(-5*time.Hour), false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/internal/timeout-sweep", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer secret")
	w := f.do(req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var body handlers.SweepErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "timeout sweep interrupted" || body.Details == "" {
		t.Fatalf("body = %s", w.Body.String())
	}
	if body.Summary == nil || body.Summary.FinishedAt.IsZero() || body.Summary.Processed != 0 {
		t.Fatalf("summary = %+v", body.Summary)
	}
	if got := f.bookings.Snapshot("b1"); got.Status != models.StatusRequested {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestHealthReportsDegradedBeforeFirstCheck(t *testing.T) {
	f := newFixture("secret")
	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}
