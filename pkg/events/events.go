package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/roombook/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("roombook-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// Discard drops every event. Used when no NATS URL is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, interface{}) error { return nil }
func (Discard) Close() error                                       { return nil }

const (
	BookingCreated = "booking.created"
	BookingUpdated = "booking.updated"
	BookingDeleted = "booking.deleted"

	AccountRegistered = "account.registered"
	AccountDeleted    = "account.deleted"

	OTPIssued   = "otp.issued"
	OTPVerified = "otp.verified"
)

type BookingCreatedEvent struct {
	BookingID  int64     `json:"booking_id"`
	OwnerID    int64     `json:"owner_id"`
	RoomType   string    `json:"room_type"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Guests     int       `json:"guests"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BookingUpdatedEvent struct {
	BookingID  int64     `json:"booking_id"`
	OwnerID    int64     `json:"owner_id"`
	UpdatedBy  string    `json:"updated_by"`
	Changes    []string  `json:"changes"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BookingDeletedEvent struct {
	BookingID  int64     `json:"booking_id"`
	OwnerID    int64     `json:"owner_id"`
	DeletedBy  string    `json:"deleted_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AccountEvent struct {
	AccountID  int64     `json:"account_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OTPEvent never carries the code itself.
type OTPEvent struct {
	ChallengeID     int64     `json:"challenge_id"`
	AccountID       int64     `json:"account_id"`
	Action          string    `json:"action"`
	TargetBookingID *int64    `json:"target_booking_id,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
	OccurredAt      time.Time `json:"occurred_at"`
}
