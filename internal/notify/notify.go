// Package notify delivers one-time codes to account holders.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/pkg/logger"
)

type Message struct {
	To              string           `json:"to"`
	Name            string           `json:"name"`
	Action          domain.OTPAction `json:"action"`
	Code            string           `json:"code"`
	ChallengeID     int64            `json:"challenge_id"`
	TargetBookingID *int64           `json:"target_booking_id,omitempty"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

func describe(msg Message) string {
	switch msg.Action {
	case domain.ActionDeleteAccount:
		return "delete your account"
	case domain.ActionDeleteBooking:
		if msg.TargetBookingID != nil {
			return fmt.Sprintf("delete booking #%d", *msg.TargetBookingID)
		}
		return "delete a booking"
	}
	return string(msg.Action)
}

// Render builds the subject, text and HTML bodies shared by every transport.
func Render(msg Message) (subject, text, html string) {
	what := describe(msg)
	minutes := int(time.Until(msg.ExpiresAt).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	subject = "Your Roombook verification code"
	text = fmt.Sprintf("Your code to %s is %s.\n\nIt expires in %d minutes. If you did not ask for this, ignore this email.",
		what, msg.Code, minutes)
	html = fmt.Sprintf(`
		<h2>Roombook verification</h2>
		<p>Hi %s,</p>
		<p>Your code to %s is:</p>
		<p><strong style="font-size: 24px; letter-spacing: 4px;">%s</strong></p>
		<p>It expires in %d minutes. If you did not ask for this, ignore this email.</p>
	`, msg.Name, what, msg.Code, minutes)
	return subject, text, html
}

type async struct {
	next    Notifier
	timeout time.Duration
}

// Async returns a Notifier that hands delivery to a goroutine and returns at
// once. Delivery errors are logged. The caller's cancellation does not stop
// delivery, but its logging values carry over.
func Async(next Notifier, timeout time.Duration) Notifier {
	return &async{next: next, timeout: timeout}
}

func (a *async) Notify(ctx context.Context, msg Message) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, msg); err != nil {
			logger.ErrorContext(ctx, "Failed to deliver OTP notification",
				"error", err,
				"challenge_id", msg.ChallengeID,
				"action", msg.Action,
			)
		}
	}()
	return nil
}
