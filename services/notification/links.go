package notification

import (
	"net/url"
	"strings"
)

// ResponsePath is the public path of the accept/decline endpoint.
const ResponsePath = "/api/bookings/respond"

// LinkBuilder renders accept/decline links for emails and pushes.
type LinkBuilder struct {
	BaseURL string
}

func (l LinkBuilder) link(action, reference, providerID string) string {
	q := url.Values{}
	q.Set("action", action)
	q.Set("booking", reference)
	q.Set("therapist", providerID)
	return strings.TrimRight(l.BaseURL, "/") + ResponsePath + "?" + q.Encode()
}

func (l LinkBuilder) AcceptURL(reference, providerID string) string {
	return l.link("accept", reference, providerID)
}

func (l LinkBuilder) DeclineURL(reference, providerID string) string {
	return l.link("decline", reference, providerID)
}
