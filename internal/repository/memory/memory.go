// Package memory is an in-process record store with the same contract as the
// PostgreSQL repositories, including unique emails and cascade deletes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/repository"
)

type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	accounts   map[int64]domain.Account
	bookings   map[int64]domain.Booking
	challenges map[int64]domain.OTPChallenge
	seq        struct{ account, booking, challenge int64 }
}

func New() *Store {
	return &Store{
		now:        time.Now,
		accounts:   make(map[int64]domain.Account),
		bookings:   make(map[int64]domain.Booking),
		challenges: make(map[int64]domain.OTPChallenge),
	}
}

// WithClock sets the source of store-assigned timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Accounts() repository.AccountRepository { return &accounts{s} }
func (s *Store) Bookings() repository.BookingRepository { return &bookings{s} }
func (s *Store) Challenges() repository.OTPRepository   { return &challenges{s} }

// Counts reports how many rows each table holds.
func (s *Store) Counts() (accounts, bookings, challenges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), len(s.bookings), len(s.challenges)
}

type accounts struct{ s *Store }

func (r *accounts) Create(_ context.Context, acc *domain.NewAccount) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.accounts {
		if a.Email == acc.Email {
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}
	r.s.seq.account++
	a := domain.Account{
		ID:           r.s.seq.account,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		FullName:     acc.FullName,
		Role:         acc.Role,
		CreatedAt:    r.s.now(),
	}
	r.s.accounts[a.ID] = a
	return &a, nil
}

func (r *accounts) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *accounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *accounts) Update(_ context.Context, id int64, patch domain.AccountPatch) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	if patch.Email != nil {
		for _, other := range r.s.accounts {
			if other.ID != id && other.Email == *patch.Email {
				return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
			}
		}
		a.Email = *patch.Email
	}
	if patch.FullName != nil {
		a.FullName = *patch.FullName
	}
	if patch.PasswordHash != nil {
		a.PasswordHash = *patch.PasswordHash
	}
	r.s.accounts[id] = a
	return &a, nil
}

// Delete removes the account with its bookings and challenges, mirroring
// ON DELETE CASCADE.
func (r *accounts) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[id]; !ok {
		return false, nil
	}
	delete(r.s.accounts, id)
	for bid, b := range r.s.bookings {
		if b.UserID == id {
			r.s.deleteBookingLocked(bid)
		}
	}
	for cid, c := range r.s.challenges {
		if c.UserID == id {
			delete(r.s.challenges, cid)
		}
	}
	return true, nil
}

func (r *accounts) List(_ context.Context, limit, offset int) ([]domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

type bookings struct{ s *Store }

func (r *bookings) Create(_ context.Context, ownerID int64, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[ownerID]; !ok {
		return nil, fmt.Errorf("owner %d does not exist", ownerID)
	}
	r.s.seq.booking++
	b := domain.Booking{
		ID:        r.s.seq.booking,
		RoomType:  req.RoomType,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Guests:    req.Guests,
		UserID:    ownerID,
		CreatedAt: r.s.now(),
	}
	r.s.bookings[b.ID] = b
	return &b, nil
}

func (r *bookings) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *bookings) GetView(_ context.Context, id int64) (*domain.BookingView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	v := r.s.viewLocked(b)
	return &v, nil
}

func (r *bookings) ListByOwner(_ context.Context, ownerID int64, limit, offset int) ([]domain.Booking, error) {
	return r.list(limit, offset, func(b domain.Booking) bool { return b.UserID == ownerID }), nil
}

func (r *bookings) List(_ context.Context, limit, offset int) ([]domain.Booking, error) {
	return r.list(limit, offset, func(domain.Booking) bool { return true }), nil
}

func (r *bookings) ListViews(_ context.Context, limit, offset int) ([]domain.BookingView, error) {
	list := r.list(limit, offset, func(domain.Booking) bool { return true })
	return r.views(list), nil
}

func (r *bookings) ListAttributed(_ context.Context, limit, offset int) ([]domain.BookingView, error) {
	r.s.mu.Lock()
	var out []domain.Booking
	for _, b := range r.s.bookings {
		if b.UpdatedBy != nil {
			out = append(out, b)
		}
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := *out[i].UpdatedAt, *out[j].UpdatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return r.views(page(out, limit, offset)), nil
}

func (r *bookings) Update(_ context.Context, id int64, patch domain.BookingPatch, updatedBy string) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	b = patch.Apply(b)
	now := r.s.now()
	by := updatedBy
	b.UpdatedAt = &now
	b.UpdatedBy = &by
	r.s.bookings[id] = b
	return &b, nil
}

func (r *bookings) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[id]; !ok {
		return false, nil
	}
	r.s.deleteBookingLocked(id)
	return true, nil
}

func (r *bookings) list(limit, offset int, keep func(domain.Booking) bool) []domain.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.Booking{}
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, offset)
}

func (r *bookings) views(list []domain.Booking) []domain.BookingView {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.BookingView, 0, len(list))
	for _, b := range list {
		out = append(out, r.s.viewLocked(b))
	}
	return out
}

type challenges struct{ s *Store }

func (r *challenges) Create(_ context.Context, c *domain.NewOTPChallenge) (*domain.OTPChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[c.UserID]; !ok {
		return nil, fmt.Errorf("owner %d does not exist", c.UserID)
	}
	if c.TargetBookingID != nil {
		if _, ok := r.s.bookings[*c.TargetBookingID]; !ok {
			return nil, fmt.Errorf("target booking %d does not exist", *c.TargetBookingID)
		}
	}
	r.s.seq.challenge++
	ch := domain.OTPChallenge{
		ID:              r.s.seq.challenge,
		UserID:          c.UserID,
		CodeHash:        c.CodeHash,
		Action:          c.Action,
		TargetBookingID: copyID(c.TargetBookingID),
		ExpiresAt:       c.ExpiresAt,
		CreatedAt:       r.s.now(),
	}
	r.s.challenges[ch.ID] = ch
	return &ch, nil
}

func (r *challenges) FindByID(_ context.Context, id int64) (*domain.OTPChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.challenges[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *challenges) ListUnused(_ context.Context, userID int64, action domain.OTPAction, target *int64) ([]domain.OTPChallenge, error) {
	return r.filter(func(c domain.OTPChallenge) bool {
		return c.UserID == userID && c.Action == action && c.SameTarget(target) && !c.Used
	}), nil
}

func (r *challenges) ListPending(_ context.Context, userID int64, now time.Time) ([]domain.OTPChallenge, error) {
	return r.filter(func(c domain.OTPChallenge) bool {
		return c.UserID == userID && c.Pending(now)
	}), nil
}

func (r *challenges) FindConsumed(_ context.Context, userID int64, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error) {
	list := r.filter(func(c domain.OTPChallenge) bool {
		return c.UserID == userID && c.Action == action && c.SameTarget(target) && c.Used
	})
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (r *challenges) MarkUsed(_ context.Context, id int64, approver string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.challenges[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	c.ApprovedBy = &approver
	r.s.challenges[id] = c
	return true, nil
}

func (r *challenges) Replace(_ context.Context, id int64, codeHash string, expiresAt time.Time) (*domain.OTPChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.challenges[id]
	if !ok || c.Used {
		return nil, nil
	}
	c.CodeHash = codeHash
	c.ExpiresAt = expiresAt
	r.s.challenges[id] = c
	return &c, nil
}

func (r *challenges) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.challenges[id]; !ok {
		return false, nil
	}
	delete(r.s.challenges, id)
	return true, nil
}

// filter returns matches newest first.
func (r *challenges) filter(keep func(domain.OTPChallenge) bool) []domain.OTPChallenge {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.OTPChallenge{}
	for _, c := range r.s.challenges {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// deleteBookingLocked removes a booking and the challenges targeting it.
func (s *Store) deleteBookingLocked(id int64) {
	delete(s.bookings, id)
	for cid, c := range s.challenges {
		if c.TargetBookingID != nil && *c.TargetBookingID == id {
			delete(s.challenges, cid)
		}
	}
}

func (s *Store) viewLocked(b domain.Booking) domain.BookingView {
	v := domain.BookingView{Booking: b}
	if a, ok := s.accounts[b.UserID]; ok {
		o := a.Owner()
		v.Owner = &o
	}
	return v
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
