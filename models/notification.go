package models

// Recipient roles carried in push data so clients can route the message.
const (
	RecipientProvider = "provider"
	RecipientCustomer = "customer"
	RecipientOps      = "ops"
)

// NotificationPayload is the queued unit of outbound delivery.
// Exactly one of Token or Topic is set.
type NotificationPayload struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"` // e.g. "booking.confirmed"
	Role      string            `json:"role"` // provider, customer or ops
	Token     string            `json:"token,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	BookingID string            `json:"bookingId"`
}
