package domain

import "time"

const (
	OTPCodeDigits  = 6
	ApproverSystem = "system"
)

type OTPAction string

const (
	ActionDeleteAccount OTPAction = "delete_account"
	ActionDeleteBooking OTPAction = "delete_booking"
)

func (a OTPAction) Valid() bool {
	return a == ActionDeleteAccount || a == ActionDeleteBooking
}

// Targeted actions are scoped to a single booking.
func (a OTPAction) Targeted() bool {
	return a == ActionDeleteBooking
}

type OTPChallenge struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	CodeHash        string    `json:"-"`
	Action          OTPAction `json:"action_type"`
	TargetBookingID *int64    `json:"target_booking_id,omitempty"`
	Used            bool      `json:"is_used"`
	ApprovedBy      *string   `json:"approved_by,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Expired reports whether now is at or past the expiry. A code is only good
// strictly before ExpiresAt.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *OTPChallenge) Pending(now time.Time) bool {
	return !c.Used && !c.Expired(now)
}

// SameTarget compares the optional target booking ids.
func (c *OTPChallenge) SameTarget(target *int64) bool {
	if c.TargetBookingID == nil || target == nil {
		return c.TargetBookingID == nil && target == nil
	}
	return *c.TargetBookingID == *target
}

type NewOTPChallenge struct {
	UserID          int64
	CodeHash        string
	Action          OTPAction
	TargetBookingID *int64
	ExpiresAt       time.Time
}

// IssuedOTP is a stored challenge plus the plaintext code, which exists only
// in memory between issuance and notification.
type IssuedOTP struct {
	Challenge *OTPChallenge
	Code      string
}

func ValidOTPCode(code string) bool {
	if len(code) != OTPCodeDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
