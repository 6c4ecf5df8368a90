package models

import "time"

// StatusHistoryEntry is an append-only audit record written on every transition.
// ActorProviderID is empty when the system (the timeout sweep) acted.
type StatusHistoryEntry struct {
	ID               string        `bson:"id" json:"id"`
	BookingID        string        `bson:"booking_id" json:"booking_id"`
	BookingReference string        `bson:"booking_reference" json:"booking_reference"`
	Status           BookingStatus `bson:"status" json:"status"`
	ActorProviderID  string        `bson:"actor_provider_id,omitempty" json:"actor_provider_id,omitempty"`
	Note             string        `bson:"note" json:"note"`
	RecordedAt       time.Time     `bson:"recorded_at" json:"recorded_at"`
}
