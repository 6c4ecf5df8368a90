package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"bloomdispatch/config"
	bookingRepo "bloomdispatch/database/repository/booking"
	"bloomdispatch/database/repository/memory"
	"bloomdispatch/models"
	"bloomdispatch/services/booking"
	"bloomdispatch/services/matching"
	"bloomdispatch/services/notification"

	"go.uber.org/zap"
)

var (
	now   = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) // Tuesday
	today = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
)

func ptr(v float64) *float64 { return &v }

func at(t time.Time) *time.Time { return &t }

func provider(id string) models.Provider {
	return models.Provider{
		ID:              id,
		Active:          true,
		ServiceTypeIDs:  []string{"massage"},
		Latitude:        ptr(51.51),
		Longitude:       ptr(-0.12),
		ServiceRadiusKm: 15,
		WeeklyAvailability: []models.AvailabilityWindow{
			{DayOfWeek: time.Tuesday, Start: "08:00", End: "20:00"},
			{DayOfWeek: time.Wednesday, Start: "08:00", End: "20:00"},
		},
	}
}

func stale(id string, createdAgo time.Duration) models.Booking {
	return models.Booking{
		ID:                 id,
		Reference:          "BK-" + id,
		ScheduledAt:        today,
		DurationMinutes:    60,
		Timezone:           "UTC",
		AssignedProviderID: "p1",
		Status:             models.StatusRequested,
		ServiceTypeID:      "massage",
		GenderPreference:   models.GenderAny,
		Latitude:           ptr(51.5074),
		Longitude:          ptr(-0.1278),
		FallbackAllowed:    true,
		CreatedAt:          now.Add(-createdAgo),
	}
}

type env struct {
	bookings *memory.BookingRepo
	notifier *notification.Recorder
	sweeper  *Sweeper
}

func newEnv(repo bookingRepo.BookingRepository, mem *memory.BookingRepo, providers ...models.Provider) *env {
	logger := zap.NewNop()
	rec := &notification.Recorder{}
	finder := &matching.DefaultCandidateFinder{
		ProviderRepo:    memory.NewProviderRepo(providers...),
		BookingRepo:     repo,
		DefaultLocation: time.UTC,
		Logger:          logger,
	}
	transitions := booking.NewTransitioner(repo, rec, logger)
	transitions.Now = func() time.Time { return now }
	s := NewSweeper(repo, finder, transitions, Options{
		GraceWindow:              DefaultGraceWindow,
		ExcludedReferencePattern: "^RQ-",
		DefaultLocation:          time.UTC,
	}, logger)
	s.Now = func() time.Time { return now }
	return &env{bookings: mem, notifier: rec, sweeper: s}
}

func setup(providers []models.Provider, bookings ...models.Booking) *env {
	mem := memory.NewBookingRepo(bookings...)
	return newEnv(mem, mem, providers...)
}

func run(t *testing.T, e *env) *Summary {
	t.Helper()
	summary, err := e.sweeper.Run(context.Background(), config.DefaultTimeoutSettings())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func result(t *testing.T, s *Summary, bookingID string) Result {
	t.Helper()
	for _, r := range s.Results {
		if r.BookingID == bookingID {
			return r
		}
	}
	t.Fatalf("no result for %s in %+v", bookingID, s.Results)
	return Result{}
}

func TestSameDayTimeoutEscalatesToAlternates(t *testing.T) {
	e := setup([]models.Provider{provider("p1"), provider("p2"), provider("p3")}, stale("b1", 65*time.Minute))

	summary := run(t, e)
	r := result(t, summary, "b1")
	if r.Action != ActionReassigned || r.Candidates != 2 {
		t.Fatalf("result = %+v", r)
	}
	if r.ThresholdMinutes != 60 || r.ElapsedMinutes != 65 {
		t.Fatalf("threshold/elapsed = %d/%d", r.ThresholdMinutes, r.ElapsedMinutes)
	}

	got := e.bookings.Snapshot("b1")
	if got.Status != models.StatusTimeoutReassigned {
		t.Fatalf("status = %s, want timeout_reassigned", got.Status)
	}
	if got.AssignedProviderID != "p1" || got.RespondingProviderID != "" {
		t.Fatalf("assigned=%q responding=%q", got.AssignedProviderID, got.RespondingProviderID)
	}

	events := e.notifier.Events()
	if len(events) != 1 || events[0].Kind != notification.EventAlternates {
		t.Fatalf("events = %+v", events)
	}
	if c := events[0].Candidates; len(c) != 2 || c[0] != "p2" || c[1] != "p3" {
		t.Fatalf("candidates notified = %v", c)
	}
	if h := e.bookings.History("b1"); len(h) != 1 || h[0].ActorProviderID != "" {
		t.Fatalf("history = %+v", h)
	}
}

func TestNotYetDueUnderStandardThreshold(t *testing.T) {
	tomorrow := stale("b1", 65*time.Minute)
	tomorrow.ScheduledAt = today.AddDate(0, 0, 1)
	e := setup([]models.Provider{provider("p1"), provider("p2")}, tomorrow, stale("b2", 30*time.Minute))

	summary := run(t, e)
	r := result(t, summary, "b1")
	if r.Action != ActionSkipped || r.SkipReason != SkipNotYetDue || r.ThresholdMinutes != 240 {
		t.Fatalf("result = %+v", r)
	}
	if summary.Processed != 1 {
		t.Fatalf("b2 is too young for the coarse query, processed = %d", summary.Processed)
	}
	for _, id := range []string{"b1", "b2"} {
		if got := e.bookings.Snapshot(id); got.Status != models.StatusRequested {
			t.Fatalf("%s status = %s", id, got.Status)
		}
	}
	if len(e.notifier.Events()) != 0 {
		t.Fatal("notifications sent for bookings that are not due")
	}
}

func TestTimeoutWithoutFallbackDeclines(t *testing.T) {
	b := stale("b1", 65*time.Minute)
	b.FallbackAllowed = false
	e := setup([]models.Provider{provider("p1"), provider("p2")}, b)

	r := result(t, run(t, e), "b1")
	if r.Action != ActionDeclinedNoFallback {
		t.Fatalf("action = %s", r.Action)
	}
	got := e.bookings.Snapshot("b1")
	if got.Status != models.StatusDeclined || got.RespondingProviderID != "" {
		t.Fatalf("booking = %s/%q", got.Status, got.RespondingProviderID)
	}
	if n := e.notifier.Count(notification.EventDeclined); n != 1 {
		t.Fatalf("decline notifications = %d", n)
	}
}

func TestTimeoutWithNoCandidatesDeclines(t *testing.T) {
	e := setup([]models.Provider{provider("p1")}, stale("b1", 65*time.Minute))

	r := result(t, run(t, e), "b1")
	if r.Action != ActionDeclinedNoAlternatives {
		t.Fatalf("action = %s", r.Action)
	}
	if got := e.bookings.Snapshot("b1"); got.Status != models.StatusDeclined {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestReassignedBookingsGetFinalDecline(t *testing.T) {
	due := stale("b1", 6*time.Hour)
	due.Status = models.StatusTimeoutReassigned
	due.UpdatedAt = at(now.Add(-70 * time.Minute))

	tomorrow := stale("b2", 6*time.Hour)
	tomorrow.Status = models.StatusSeekingAlternate
	tomorrow.ScheduledAt = today.AddDate(0, 0, 1)
	tomorrow.UpdatedAt = at(now.Add(-70 * time.Minute))

	e := setup([]models.Provider{provider("p1"), provider("p2")}, due, tomorrow)
	summary := run(t, e)

	if r := result(t, summary, "b1"); r.Action != ActionFinalDecline || r.Set != SetReassigned {
		t.Fatalf("b1 result = %+v", r)
	}
	if r := result(t, summary, "b2"); r.SkipReason != SkipNotYetDue {
		t.Fatalf("b2 result = %+v", r)
	}
	if got := e.bookings.Snapshot("b1"); got.Status != models.StatusDeclined {
		t.Fatalf("b1 status = %s", got.Status)
	}
	if got := e.bookings.Snapshot("b2"); got.Status != models.StatusSeekingAlternate {
		t.Fatalf("b2 status = %s", got.Status)
	}
	if n := e.notifier.Count(notification.EventAlternates); n != 0 {
		t.Fatal("final decline must not escalate again")
	}
}

func TestExcludedBookingsAreIgnored(t *testing.T) {
	responding := stale("b1", 65*time.Minute)
	responding.ResponseRecordedAt = at(now.Add(-time.Minute))

	quote := stale("b2", 65*time.Minute)
	quote.Reference = "RQ-1002"

	follower := stale("b3", 65*time.Minute)
	follower.SeriesID = "series-1"
	follower.OccurrenceIndex = 2

	touched := stale("b4", 65*time.Minute)
	touched.UpdatedAt = at(now.Add(-time.Minute))

	e := setup([]models.Provider{provider("p1"), provider("p2")}, responding, quote, follower, touched)
	summary := run(t, e)
	if summary.Processed != 0 {
		t.Fatalf("processed = %d, results = %+v", summary.Processed, summary.Results)
	}
}

func TestFailureIsIsolatedPerBooking(t *testing.T) {
	e := setup([]models.Provider{provider("p1"), provider("p2")},
		stale("b1", 70*time.Minute), stale("b2", 65*time.Minute))
	e.bookings.FailTransitions = map[string]error{"b1": errors.New("write conflict")}

	summary := run(t, e)
	if r := result(t, summary, "b1"); r.SkipReason != SkipError || r.Error == "" {
		t.Fatalf("b1 result = %+v", r)
	}
	if r := result(t, summary, "b2"); r.Action != ActionReassigned {
		t.Fatalf("b2 result = %+v", r)
	}
	if summary.Failed != 1 || summary.Transitioned != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

// racingRepo confirms every booking right after the sweep has read it.
type racingRepo struct {
	*memory.BookingRepo
}

func (r racingRepo) FindStaleRequested(ctx context.Context, q bookingRepo.StaleRequestedQuery) ([]models.Booking, error) {
	out, err := r.BookingRepo.FindStaleRequested(ctx, q)
	for _, b := range out {
		b.Status = models.StatusConfirmed
		b.RespondingProviderID = b.AssignedProviderID
		r.Put(b)
	}
	return out, err
}

func TestConcurrentAcceptWinsOverSweep(t *testing.T) {
	mem := memory.NewBookingRepo(stale("b1", 65*time.Minute))
	e := newEnv(racingRepo{mem}, mem, provider("p1"), provider("p2"))

	summary := run(t, e)
	if r := result(t, summary, "b1"); r.SkipReason != SkipAlreadyProcessed {
		t.Fatalf("result = %+v", r)
	}
	got := e.bookings.Snapshot("b1")
	if got.Status != models.StatusConfirmed || got.RespondingProviderID != "p1" {
		t.Fatalf("booking = %s/%q", got.Status, got.RespondingProviderID)
	}
	if len(e.notifier.Events()) != 0 {
		t.Fatal("losing sweep sent notifications")
	}
}

func TestRunWithSettingsUsesStoredThresholds(t *testing.T) {
	e := setup([]models.Provider{provider("p1"), provider("p2")}, stale("b1", 40*time.Minute))
	settings := memory.NewSettingsRepo(map[string]string{
		config.SameDayTimeoutKey:  "30",
		config.StandardTimeoutKey: "120",
	})

	summary, err := e.sweeper.RunWithSettings(context.Background(), settings)
	if err != nil {
		t.Fatalf("RunWithSettings: %v", err)
	}
	if summary.SameDayTimeoutMinutes != 30 || summary.StandardTimeoutMinutes != 120 {
		t.Fatalf("thresholds = %d/%d", summary.SameDayTimeoutMinutes, summary.StandardTimeoutMinutes)
	}
	if r := result(t, summary, "b1"); r.Action != ActionReassigned {
		t.Fatalf("result = %+v", r)
	}
}

func TestRunWithSettingsFallsBackToDefaults(t *testing.T) {
	e := setup([]models.Provider{provider("p1")}, stale("b1", 40*time.Minute))
	settings := memory.NewSettingsRepo(nil)
	settings.Err = errors.New("settings unavailable")

	summary, err := e.sweeper.RunWithSettings(context.Background(), settings)
	if err != nil {
		t.Fatalf("RunWithSettings: %v", err)
	}
	if summary.SameDayTimeoutMinutes != 60 || summary.StandardTimeoutMinutes != 240 {
		t.Fatalf("thresholds = %d/%d", summary.SameDayTimeoutMinutes, summary.StandardTimeoutMinutes)
	}
	if summary.Processed != 0 {
		t.Fatalf("40 minute old booking processed under defaults: %+v", summary.Results)
	}
}

func TestCancelledRunReturnsClosedPartialSummary(t *testing.T) {
	e := setup([]models.Provider{provider("p1"), provider("p2")}, stale("b1", 65*time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := e.sweeper.Run(ctx, config.DefaultTimeoutSettings())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if summary == nil {
		t.Fatal("interrupted run returned no summary")
	}
	if summary.FinishedAt.IsZero() || summary.FinishedAt.Before(summary.StartedAt) {
		t.Fatalf("finished_at = %v, started_at = %v", summary.FinishedAt, summary.StartedAt)
	}
	if summary.Processed != 0 || len(summary.Results) != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := e.bookings.Snapshot("b1"); got.Status != models.StatusRequested {
		t.Fatalf("status = %s", got.Status)
	}
}
