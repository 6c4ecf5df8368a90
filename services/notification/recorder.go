package notification

import (
	"context"
	"sync"
	"time"

	"bloomdispatch/models"
)

// Event kinds captured by Recorder.
const (
	EventConfirmed  = "confirmed"
	EventDeclined   = "declined"
	EventAlternates = "alternates"
)

// Event is one dispatcher call captured by Recorder.
type Event struct {
	Kind       string
	BookingID  string
	ProviderID string
	Reason     string
	Candidates []string
	Window     time.Duration
}

// Recorder is a Dispatcher that only remembers what it was asked to send.
// It backs dry runs and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Dispatcher = (*Recorder)(nil)

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) BookingConfirmed(_ context.Context, b *models.Booking, p *models.Provider) {
	r.add(Event{Kind: EventConfirmed, BookingID: b.ID, ProviderID: p.ID})
}

func (r *Recorder) BookingDeclined(_ context.Context, b *models.Booking, reason string) {
	r.add(Event{Kind: EventDeclined, BookingID: b.ID, Reason: reason})
}

func (r *Recorder) AlternatesSought(_ context.Context, b *models.Booking, candidates []models.Provider, window time.Duration) {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	r.add(Event{Kind: EventAlternates, BookingID: b.ID, Candidates: ids, Window: window})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
