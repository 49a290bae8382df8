package domain

import (
	"strings"
	"time"
)

type Booking struct {
	ID        int64      `json:"id"`
	RoomType  string     `json:"room_type"`
	CheckIn   time.Time  `json:"check_in"`
	CheckOut  time.Time  `json:"check_out"`
	Guests    int        `json:"guests"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	UpdatedBy *string    `json:"updated_by"`
}

// BookingView is a booking plus, for elevated readers, its owner.
type BookingView struct {
	Booking
	Owner *Owner `json:"user,omitempty"`
}

type CreateBookingRequest struct {
	RoomType string    `json:"room_type"`
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Guests   int       `json:"guests"`
}

func (r *CreateBookingRequest) Normalize() {
	r.RoomType = strings.TrimSpace(r.RoomType)
}

func (r *CreateBookingRequest) Validate() error {
	b := Booking{RoomType: r.RoomType, CheckIn: r.CheckIn, CheckOut: r.CheckOut, Guests: r.Guests}
	return b.Validate()
}

// Validate checks the invariants every stored booking must hold.
func (b *Booking) Validate() error {
	if b.RoomType == "" {
		return invalid("room_type", "is required")
	}
	if b.Guests <= 0 {
		return invalid("guests", "must be a positive number")
	}
	if b.CheckIn.IsZero() || b.CheckOut.IsZero() {
		return invalid("check_in", "check_in and check_out are required")
	}
	if !b.CheckIn.Before(b.CheckOut) {
		return invalid("check_out", "must be after check_in")
	}
	return nil
}

// Patchable booking fields, by their wire names.
const (
	FieldRoomType = "room_type"
	FieldCheckIn  = "check_in"
	FieldCheckOut = "check_out"
	FieldGuests   = "guests"
)

// OwnerMutableFields is what a plain user may change on their own booking.
var OwnerMutableFields = map[string]bool{
	FieldRoomType: true,
	FieldGuests:   true,
}

type BookingPatch struct {
	RoomType *string    `json:"room_type,omitempty"`
	CheckIn  *time.Time `json:"check_in,omitempty"`
	CheckOut *time.Time `json:"check_out,omitempty"`
	Guests   *int       `json:"guests,omitempty"`
}

func (p *BookingPatch) Normalize() {
	if p.RoomType != nil {
		v := strings.TrimSpace(*p.RoomType)
		p.RoomType = &v
	}
}

// Fields returns the names of the fields present in the patch.
func (p BookingPatch) Fields() []string {
	var out []string
	if p.RoomType != nil {
		out = append(out, FieldRoomType)
	}
	if p.CheckIn != nil {
		out = append(out, FieldCheckIn)
	}
	if p.CheckOut != nil {
		out = append(out, FieldCheckOut)
	}
	if p.Guests != nil {
		out = append(out, FieldGuests)
	}
	return out
}

func (p BookingPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Validate checks the present fields on their own. Cross-field rules that
// depend on stored values are checked on the merged booking.
func (p BookingPatch) Validate() error {
	if p.RoomType != nil && *p.RoomType == "" {
		return invalid("room_type", "must not be empty")
	}
	if p.Guests != nil && *p.Guests <= 0 {
		return invalid("guests", "must be a positive number")
	}
	if p.CheckIn != nil && p.CheckOut != nil && !p.CheckIn.Before(*p.CheckOut) {
		return invalid("check_out", "must be after check_in")
	}
	return nil
}

// Restrict drops every field not in allowed and reports what was dropped.
func (p BookingPatch) Restrict(allowed map[string]bool) (BookingPatch, []string) {
	var dropped []string
	out := p
	if p.RoomType != nil && !allowed[FieldRoomType] {
		out.RoomType = nil
		dropped = append(dropped, FieldRoomType)
	}
	if p.CheckIn != nil && !allowed[FieldCheckIn] {
		out.CheckIn = nil
		dropped = append(dropped, FieldCheckIn)
	}
	if p.CheckOut != nil && !allowed[FieldCheckOut] {
		out.CheckOut = nil
		dropped = append(dropped, FieldCheckOut)
	}
	if p.Guests != nil && !allowed[FieldGuests] {
		out.Guests = nil
		dropped = append(dropped, FieldGuests)
	}
	return out, dropped
}

// Apply copies the present fields onto b.
func (p BookingPatch) Apply(b Booking) Booking {
	if p.RoomType != nil {
		b.RoomType = *p.RoomType
	}
	if p.CheckIn != nil {
		b.CheckIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		b.CheckOut = *p.CheckOut
	}
	if p.Guests != nil {
		b.Guests = *p.Guests
	}
	return b
}

type BookingUpdateResult struct {
	Booking       *Booking `json:"booking"`
	IgnoredFields []string `json:"ignored_fields,omitempty"`
}

type DeleteResult struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}
