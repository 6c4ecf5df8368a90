package models

import (
	"fmt"
	"time"
)

// BookingStatus is the assignment state of a booking.
type BookingStatus string

const (
	StatusRequested         BookingStatus = "requested"
	StatusSeekingAlternate  BookingStatus = "seeking_alternate"
	StatusTimeoutReassigned BookingStatus = "timeout_reassigned"
	StatusConfirmed         BookingStatus = "confirmed"
	StatusDeclined          BookingStatus = "declined"
	StatusCancelled         BookingStatus = "cancelled"
	StatusCompleted         BookingStatus = "completed"
)

// OpenStatuses are the statuses a booking can still be accepted from.
var OpenStatuses = []BookingStatus{StatusRequested, StatusSeekingAlternate, StatusTimeoutReassigned}

// BusyStatuses mark a booking as occupying its provider's calendar.
var BusyStatuses = []BookingStatus{StatusRequested, StatusConfirmed, StatusTimeoutReassigned, StatusSeekingAlternate}

var knownStatuses = map[BookingStatus]bool{
	StatusRequested:         true,
	StatusSeekingAlternate:  true,
	StatusTimeoutReassigned: true,
	StatusConfirmed:         true,
	StatusDeclined:          true,
	StatusCancelled:         true,
	StatusCompleted:         true,
}

// ParseBookingStatus rejects anything outside the known status set.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if !knownStatuses[st] {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool { return knownStatuses[s] }

// IsOpen reports whether the booking is still waiting for a provider.
func (s BookingStatus) IsOpen() bool {
	return s == StatusRequested || s == StatusSeekingAlternate || s == StatusTimeoutReassigned
}

// IsFanOut reports whether alternates are currently allowed to respond.
func (s BookingStatus) IsFanOut() bool {
	return s == StatusSeekingAlternate || s == StatusTimeoutReassigned
}

// IsResolved reports whether an explicit outcome has been recorded.
func (s BookingStatus) IsResolved() bool {
	return s == StatusConfirmed || s == StatusDeclined
}

// PaymentCaptured is the payment_status recorded once the authorisation is settled.
const PaymentCaptured = "captured"

// GenderAny is the gender preference that matches every provider.
const GenderAny = "any"

// Customer is the snapshot of the requesting customer stored on the booking.
type Customer struct {
	ID        string `bson:"id" json:"id"`
	Name      string `bson:"name" json:"name"`
	Email     string `bson:"email" json:"email"`
	PushToken string `bson:"push_token,omitempty" json:"-"`
}

// Booking represents one scheduled engagement awaiting or holding a provider.
type Booking struct {
	ID        string `bson:"id" json:"id" validate:"required"`
	Reference string `bson:"reference" json:"reference" validate:"required"`

	ScheduledAt     time.Time `bson:"scheduled_at" json:"scheduled_at" validate:"required"`
	DurationMinutes int       `bson:"duration_minutes" json:"duration_minutes" validate:"gt=0"`
	Timezone        string    `bson:"timezone,omitempty" json:"timezone,omitempty"`

	AssignedProviderID   string `bson:"assigned_provider_id,omitempty" json:"assigned_provider_id,omitempty"`
	RespondingProviderID string `bson:"responding_provider_id,omitempty" json:"responding_provider_id,omitempty"`

	Status BookingStatus `bson:"status" json:"status" validate:"required,booking_status"`

	ServiceTypeID    string   `bson:"service_type_id" json:"service_type_id" validate:"required"`
	GenderPreference string   `bson:"gender_preference,omitempty" json:"gender_preference,omitempty"`
	Latitude         *float64 `bson:"latitude,omitempty" json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude        *float64 `bson:"longitude,omitempty" json:"longitude,omitempty" validate:"omitempty,longitude"`
	FallbackAllowed  bool     `bson:"fallback_allowed" json:"fallback_allowed"`

	SeriesID        string `bson:"series_id,omitempty" json:"series_id,omitempty"`
	OccurrenceIndex int    `bson:"occurrence_index" json:"occurrence_index" validate:"gte=0"`

	PaymentIntentID string `bson:"payment_intent_id,omitempty" json:"-"`
	PaymentStatus   string `bson:"payment_status,omitempty" json:"payment_status,omitempty"`

	Customer Customer `bson:"customer" json:"customer"`

	CreatedAt          time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	ResponseRecordedAt *time.Time `bson:"response_recorded_at,omitempty" json:"response_recorded_at,omitempty"`
}

// HasLocation reports whether the booking carries coordinates.
func (b *Booking) HasLocation() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// IsInitialOccurrence reports whether this booking drives the assignment of its series.
func (b *Booking) IsInitialOccurrence() bool {
	return b.OccurrenceIndex == 0
}

// EndsAt is the scheduled end of the engagement.
func (b *Booking) EndsAt() time.Time {
	return b.ScheduledAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Location resolves the booking's timezone, falling back to the supplied default.
func (b *Booking) Location(fallback *time.Location) *time.Location {
	if b.Timezone != "" {
		if loc, err := time.LoadLocation(b.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// LocalStart is the scheduled start expressed in the booking's own timezone.
func (b *Booking) LocalStart(fallback *time.Location) time.Time {
	return b.ScheduledAt.In(b.Location(fallback))
}
