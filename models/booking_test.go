package models

import (
	"testing"
	"time"
)

func TestStatusSets(t *testing.T) {
	for _, s := range OpenStatuses {
		if !s.IsOpen() || s.IsResolved() {
			t.Fatalf("%s should be open", s)
		}
	}
	if StatusRequested.IsFanOut() || !StatusTimeoutReassigned.IsFanOut() || !StatusSeekingAlternate.IsFanOut() {
		t.Fatal("fan-out statuses misclassified")
	}
	if StatusCancelled.IsOpen() || StatusCancelled.IsResolved() {
		t.Fatal("cancelled is neither open nor resolved")
	}
	if _, err := ParseBookingStatus("pending"); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestBookingValidate(t *testing.T) {
	b := Booking{
		ID:              "b1",
		Reference:       "BK-1",
		ScheduledAt:     time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          StatusRequested,
		ServiceTypeID:   "massage",
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("valid booking rejected: %v", err)
	}

	b.Status = "pending"
	if err := b.Validate(); err == nil {
		t.Fatal("unknown status accepted")
	}

	b.Status = StatusRequested
	lat := 123.0
	b.Latitude = &lat
	if err := b.Validate(); err == nil {
		t.Fatal("out of range latitude accepted")
	}
}

func TestBookingLocation(t *testing.T) {
	b := Booking{Timezone: "Not/AZone"}
	if loc := b.Location(nil); loc != time.UTC {
		t.Fatalf("location = %v", loc)
	}
	b.Timezone = "America/New_York"
	if loc := b.Location(time.UTC); loc.String() != "America/New_York" {
		t.Fatalf("location = %v", loc)
	}
}

func TestAvailabilityWindowIsHalfOpen(t *testing.T) {
	w := AvailabilityWindow{DayOfWeek: time.Tuesday, Start: "09:00", End: "17:00"}
	if !w.Covers(9*60) || !w.Covers(17*60-1) || w.Covers(17*60) {
		t.Fatal("window bounds wrong")
	}
	if (AvailabilityWindow{Start: "bad", End: "17:00"}).Covers(10 * 60) {
		t.Fatal("malformed window matched")
	}
}

func TestAvailabilityWindowUntilMidnight(t *testing.T) {
	if got, err := ParseClock(" 24:00 "); err != nil || got != EndOfDay {
		t.Fatalf("ParseClock(24:00) = %d, %v", got, err)
	}
	if _, err := ParseClock("24:30"); err == nil {
		t.Fatal("24:30 accepted")
	}
	w := AvailabilityWindow{DayOfWeek: time.Friday, Start: "18:00", End: "24:00"}
	if !w.Covers(23*60+59) || !w.Covers(18*60) || w.Covers(17*60+59) {
		t.Fatal("evening window should run until midnight")
	}
	if (AvailabilityWindow{Start: "24:00", End: "24:00"}).Covers(23 * 60) {
		t.Fatal("empty window covers nothing")
	}
}

func TestTimeOffAndGender(t *testing.T) {
	block := TimeOffBlock{StartDate: "2026-03-09", EndDate: "2026-03-11", Active: true}
	if !block.CoversDate("2026-03-11") || block.CoversDate("2026-03-12") {
		t.Fatal("time off bounds wrong")
	}
	block.Active = false
	if block.CoversDate("2026-03-10") {
		t.Fatal("inactive block matched")
	}

	p := Provider{Gender: "Female"}
	if !p.MatchesGender("female") || !p.MatchesGender(GenderAny) || !p.MatchesGender("") || p.MatchesGender("male") {
		t.Fatal("gender matching wrong")
	}
}
