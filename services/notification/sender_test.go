package notification

import (
	"context"
	"errors"
	"testing"

	"bloomdispatch/models"

	"firebase.google.com/go/v4/messaging"
)

type fakeMessenger struct {
	sent []*messaging.Message
	err  error
}

func (m *fakeMessenger) Send(_ context.Context, msg *messaging.Message) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "projects/test/messages/1", nil
}

func TestBuildMessageForProvider(t *testing.T) {
	msg, err := BuildMessage(models.NotificationPayload{
		ID: "n1", Role: models.RecipientProvider, Token: "tok",
		Title: "New booking available", Body: "body",
		Data: map[string]string{"booking_id": "b1"},
	})
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	if msg.Token != "tok" || msg.Topic != "" {
		t.Fatalf("target = %q/%q", msg.Token, msg.Topic)
	}
	if msg.Android == nil || msg.Android.Priority != "high" {
		t.Fatalf("android config = %+v", msg.Android)
	}
	if msg.APNS == nil || msg.APNS.Headers["apns-priority"] != "10" {
		t.Fatalf("apns config = %+v", msg.APNS)
	}
	if msg.Data["booking_id"] != "b1" {
		t.Fatalf("data = %v", msg.Data)
	}
}

func TestBuildMessageForOpsTopic(t *testing.T) {
	msg, err := BuildMessage(models.NotificationPayload{ID: "n2", Role: models.RecipientOps, Topic: "ops"})
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	if msg.Topic != "ops" || msg.Android != nil {
		t.Fatalf("message = %+v", msg)
	}
}

func TestBuildMessageRequiresRecipient(t *testing.T) {
	if _, err := BuildMessage(models.NotificationPayload{ID: "n3"}); err == nil {
		t.Fatal("expected error for payload without token or topic")
	}
}

func TestFCMSenderWrapsErrors(t *testing.T) {
	m := &fakeMessenger{err: errors.New("unregistered")}
	s := &FCMSender{Client: m}
	if _, err := s.Send(context.Background(), models.NotificationPayload{ID: "n4", Token: "tok"}); err == nil {
		t.Fatal("expected send error")
	}

	m.err = nil
	id, err := s.Send(context.Background(), models.NotificationPayload{ID: "n5", Token: "tok"})
	if err != nil || id == "" || len(m.sent) != 1 {
		t.Fatalf("id=%q err=%v sent=%d", id, err, len(m.sent))
	}
}
