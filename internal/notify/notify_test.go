package notify_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/notify"
	"github.com/diagnosis/roombook/pkg/config"
)

type recorder struct {
	got chan notify.Message
	err error
}

func (r *recorder) Notify(_ context.Context, msg notify.Message) error {
	r.got <- msg
	return r.err
}

func TestRenderMentionsCodeAndAction(t *testing.T) {
	target := int64(12)
	msg := notify.Message{
		To: "u1@example.com", Name: "U One", Code: "004211",
		Action: domain.ActionDeleteBooking, TargetBookingID: &target,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}

	subject, text, html := notify.Render(msg)
	if subject == "" {
		t.Fatal("empty subject")
	}
	for _, body := range []string{text, html} {
		if !strings.Contains(body, "004211") || !strings.Contains(body, "booking #12") {
			t.Fatalf("body missing code or action: %q", body)
		}
	}
	if !strings.Contains(text, "10 minutes") {
		t.Fatalf("expiry not mentioned: %q", text)
	}
}

func TestAsyncReturnsBeforeDeliveryAndSwallowsErrors(t *testing.T) {
	rec := &recorder{got: make(chan notify.Message, 1), err: errors.New("smtp down")}
	n := notify.Async(rec, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Notify(ctx, notify.Message{ChallengeID: 7}); err != nil {
		t.Fatalf("async notify must not fail the caller: %v", err)
	}
	cancel()

	select {
	case msg := <-rec.got:
		if msg.ChallengeID != 7 {
			t.Fatalf("wrong message delivered: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was never delivered")
	}
}

func TestMailerSendRequiresKey(t *testing.T) {
	if _, err := notify.NewMailerSendNotifier("", "Roombook", "noreply@example.com"); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestBuildDrivers(t *testing.T) {
	email := config.EmailConfig{SMTPHost: "localhost", SMTPPort: 1025, SMTPFrom: "noreply@example.com"}

	for _, driver := range []string{"", "log", "smtp"} {
		if n, err := notify.Build(driver, email, config.AMQPConfig{}); err != nil || n == nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
	}
	if _, err := notify.Build("mailersend", email, config.AMQPConfig{}); err == nil {
		t.Fatal("mailersend without a key must fail")
	}
	if _, err := notify.Build("pigeon", email, config.AMQPConfig{}); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
