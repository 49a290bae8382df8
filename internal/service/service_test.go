package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"

	"github.com/diagnosis/roombook/internal/credential"
	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/notify"
	"github.com/diagnosis/roombook/internal/repository/memory"
	"github.com/diagnosis/roombook/internal/service"
	"github.com/diagnosis/roombook/pkg/config"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type inbox struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (i *inbox) Notify(_ context.Context, msg notify.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, msg)
	return i.err
}

func (i *inbox) last() notify.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.msgs) == 0 {
		return notify.Message{}
	}
	return i.msgs[len(i.msgs)-1]
}

type eventLog struct {
	mu       sync.Mutex
	subjects []string
}

func (e *eventLog) Publish(_ context.Context, subject string, _ interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	return nil
}

func (e *eventLog) Close() error { return nil }

func (e *eventLog) has(subject string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type harness struct {
	store    *memory.Store
	clock    *clock
	inbox    *inbox
	events   *eventLog
	otp      service.OTPService
	accounts service.AccountService
	bookings service.BookingService
}

type option func(*config.Config)

func requireBookingOTP(c *config.Config) { c.OTP.RequireForBookingDelete = true }
func closedSignup(c *config.Config)      { c.Auth.AllowPrivilegedSignup = false }

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour, AllowPrivilegedSignup: true},
		OTP:  config.OTPConfig{TTL: 10 * time.Minute, HashCost: bcrypt.MinCost},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &harness{
		store:  memory.New(),
		clock:  &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		inbox:  &inbox{},
		events: &eventLog{},
	}
	creds := credential.New(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL).WithParams(&argon2id.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	h.otp = service.NewOTPService(h.store.Challenges(), h.inbox, h.events, cfg.OTP, service.WithClock(h.clock.Now))
	h.accounts = service.NewAccountService(h.store.Accounts(), creds, h.otp, h.events, cfg.Auth)
	h.bookings = service.NewBookingService(h.store.Bookings(), h.otp, h.events, cfg.OTP)
	return h
}

func (h *harness) register(t *testing.T, email string, role domain.Role) *domain.Account {
	t.Helper()
	acc, err := h.accounts.Register(context.Background(), &domain.RegisterRequest{
		Email: email, Password: "correct-horse", FullName: "Test " + email, Role: string(role),
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return acc
}

func (h *harness) book(t *testing.T, owner *domain.Account) *domain.Booking {
	t.Helper()
	in := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	b, err := h.bookings.Create(context.Background(), owner, &domain.CreateBookingRequest{
		RoomType: "Deluxe", CheckIn: in, CheckOut: in.Add(72 * time.Hour), Guests: 2,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func TestBookingAccessByRole(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.register(t, "u1@example.com", domain.RoleUser)
	other := h.register(t, "u2@example.com", domain.RoleUser)
	admin := h.register(t, "admin@example.com", domain.RoleAdmin)
	super := h.register(t, "root@example.com", domain.RoleSuperadmin)

	tests := []struct {
		name    string
		actor   *domain.Account
		wantErr error
	}{
		{"owner", owner, nil},
		{"other user", other, domain.ErrPermissionDenied},
		{"admin", admin, nil},
		{"superadmin", super, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := h.book(t, owner)
			guests := 3

			_, err := h.bookings.Get(ctx, tt.actor, b.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("read: got %v, want %v", err, tt.wantErr)
			}
			_, err = h.bookings.Update(ctx, tt.actor, b.ID, domain.BookingPatch{Guests: &guests})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("update: got %v, want %v", err, tt.wantErr)
			}
			_, err = h.bookings.Delete(ctx, tt.actor, b.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("delete: got %v, want %v", err, tt.wantErr)
			}

			stored, _ := h.store.Bookings().GetByID(ctx, b.ID)
			if tt.wantErr != nil && (stored == nil || stored.Guests != 2) {
				t.Fatalf("denied request left a trace: %+v", stored)
			}
			if tt.wantErr == nil && stored != nil {
				t.Fatal("booking should be gone")
			}
		})
	}
}

func TestMissingBookingIsNotFoundBeforePermission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.register(t, "u1@example.com", domain.RoleUser)

	if _, err := h.bookings.Get(ctx, u, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if _, err := h.bookings.Delete(ctx, u, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}

	b := h.book(t, u)
	if _, err := h.bookings.Delete(ctx, u, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.bookings.Delete(ctx, u, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete must be not found, got %v", err)
	}
}

func TestAdminEditIsAttributed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u1 := h.register(t, "u1@example.com", domain.RoleUser)
	admin := h.register(t, "admin@example.com", domain.RoleAdmin)
	b1 := h.book(t, u1)

	suite := "Suite"
	res, err := h.bookings.Update(ctx, admin, b1.ID, domain.BookingPatch{RoomType: &suite})
	if err != nil {
		t.Fatal(err)
	}
	if res.Booking.UpdatedBy == nil || *res.Booking.UpdatedBy != "admin@example.com" {
		t.Fatalf("updated_by = %v", res.Booking.UpdatedBy)
	}
	if len(res.IgnoredFields) != 0 {
		t.Fatalf("admin patch must not drop fields: %v", res.IgnoredFields)
	}

	seen, err := h.bookings.Get(ctx, u1, b1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if seen.RoomType != "Suite" || seen.Guests != 2 {
		t.Fatalf("owner sees %+v", seen.Booking)
	}
	if seen.Owner != nil {
		t.Fatal("owner projection must not nest the owner")
	}

	adminView, _ := h.bookings.Get(ctx, admin, b1.ID)
	if adminView.Owner == nil || adminView.Owner.Email != "u1@example.com" {
		t.Fatalf("admin view owner = %+v", adminView.Owner)
	}
	if !h.events.has("booking.updated") {
		t.Fatal("update event not published")
	}
}

func TestOwnerPatchOutsideAllowedFieldsIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.register(t, "u1@example.com", domain.RoleUser)
	b := h.book(t, u)

	newIn := b.CheckIn.Add(24 * time.Hour)
	twin := "Twin"
	res, err := h.bookings.Update(ctx, u, b.ID, domain.BookingPatch{RoomType: &twin, CheckIn: &newIn})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.IgnoredFields) != 1 || res.IgnoredFields[0] != domain.FieldCheckIn {
		t.Fatalf("ignored = %v", res.IgnoredFields)
	}
	if !res.Booking.CheckIn.Equal(b.CheckIn) || res.Booking.RoomType != "Twin" {
		t.Fatalf("stored = %+v", res.Booking)
	}
	if res.Booking.UpdatedBy == nil || *res.Booking.UpdatedBy != "u1@example.com" {
		t.Fatalf("self edit must be attributed too, got %v", res.Booking.UpdatedBy)
	}

	newOut := b.CheckOut.Add(24 * time.Hour)
	res, err = h.bookings.Update(ctx, u, b.ID, domain.BookingPatch{CheckOut: &newOut})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Booking.CheckOut.Equal(b.CheckOut) {
		t.Fatal("check_out must be untouched")
	}
}

func TestBookingValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.register(t, "u1@example.com", domain.RoleUser)
	admin := h.register(t, "admin@example.com", domain.RoleAdmin)
	in := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		req  domain.CreateBookingRequest
	}{
		{"no guests", domain.CreateBookingRequest{RoomType: "Deluxe", CheckIn: in, CheckOut: in.Add(time.Hour)}},
		{"negative guests", domain.CreateBookingRequest{RoomType: "Deluxe", CheckIn: in, CheckOut: in.Add(time.Hour), Guests: -1}},
		{"reversed dates", domain.CreateBookingRequest{RoomType: "Deluxe", CheckIn: in, CheckOut: in.Add(-time.Hour), Guests: 1}},
		{"same instant", domain.CreateBookingRequest{RoomType: "Deluxe", CheckIn: in, CheckOut: in, Guests: 1}},
		{"blank room", domain.CreateBookingRequest{RoomType: "  ", CheckIn: in, CheckOut: in.Add(time.Hour), Guests: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if _, err := h.bookings.Create(ctx, u, &req); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("got %v", err)
			}
		})
	}

	// A patch that only breaks ordering against the stored value.
	b := h.book(t, u)
	early := b.CheckIn.Add(-48 * time.Hour)
	if _, err := h.bookings.Update(ctx, admin, b.ID, domain.BookingPatch{CheckOut: &early}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("merged validation: %v", err)
	}
}

func TestListScopes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u1 := h.register(t, "u1@example.com", domain.RoleUser)
	u2 := h.register(t, "u2@example.com", domain.RoleUser)
	admin := h.register(t, "admin@example.com", domain.RoleAdmin)
	super := h.register(t, "root@example.com", domain.RoleSuperadmin)
	h.book(t, u1)
	h.book(t, u1)
	h.book(t, u2)

	mine, _ := h.bookings.ListMine(ctx, u1, 20, 0)
	if len(mine) != 2 {
		t.Fatalf("user sees %d bookings", len(mine))
	}
	all, _ := h.bookings.ListMine(ctx, admin, 20, 0)
	if len(all) != 3 {
		t.Fatalf("admin sees %d bookings", len(all))
	}

	if _, err := h.bookings.ListViews(ctx, u1, 20, 0); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("user adminview: %v", err)
	}
	views, err := h.bookings.ListViews(ctx, admin, 20, 0)
	if err != nil || len(views) != 3 || views[0].Owner == nil {
		t.Fatalf("admin adminview: %v %+v", err, views)
	}

	for _, acc := range []*domain.Account{u1, admin} {
		if _, err := h.bookings.AuditLog(ctx, acc, 20, 0); !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("%s audit: %v", acc.Role, err)
		}
		if _, err := h.accounts.List(ctx, acc, 20, 0); !errors.Is(err, domain.ErrPermissionDenied) {
			t.Fatalf("%s user list: %v", acc.Role, err)
		}
	}
	users, err := h.accounts.List(ctx, super, 20, 0)
	if err != nil || len(users) != 4 {
		t.Fatalf("superadmin user list: %v %d", err, len(users))
	}
	if _, err := h.bookings.AuditLog(ctx, super, 20, 0); err != nil {
		t.Fatal(err)
	}
}

func TestAccountDeletionFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u1 := h.register(t, "u1@example.com", domain.RoleUser)
	keep := h.register(t, "u2@example.com", domain.RoleUser)
	h.book(t, u1)
	h.book(t, keep)

	issued, err := h.accounts.RequestDeletion(ctx, u1)
	if err != nil {
		t.Fatal(err)
	}
	if !domain.ValidOTPCode(issued.Code) {
		t.Fatalf("code %q is not 6 digits", issued.Code)
	}
	if want := h.clock.Now().Add(10 * time.Minute); !issued.Challenge.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", issued.Challenge.ExpiresAt, want)
	}
	if got := h.inbox.last(); got.Code != issued.Code || got.To != "u1@example.com" {
		t.Fatalf("notification = %+v", got)
	}

	h.clock.Advance(5 * time.Minute)
	c, err := h.accounts.VerifyDeletion(ctx, u1, issued.Code)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Used || c.ApprovedBy == nil || *c.ApprovedBy != domain.ApproverSystem {
		t.Fatalf("consumed challenge = %+v", c)
	}

	if _, err := h.accounts.VerifyDeletion(ctx, u1, issued.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("used code verified again: %v", err)
	}

	if err := h.accounts.DeleteSelf(ctx, u1); err != nil {
		t.Fatal(err)
	}
	accounts, bookings, challenges := h.store.Counts()
	if accounts != 1 || bookings != 1 || challenges != 0 {
		t.Fatalf("after delete: accounts=%d bookings=%d challenges=%d", accounts, bookings, challenges)
	}
	if _, err := h.accounts.Resolve(ctx, "u1@example.com"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("deleted account still resolves: %v", err)
	}
	if !h.events.has("account.deleted") {
		t.Fatal("account.deleted not published")
	}
}

func TestDeleteWithoutVerifiedCodeIsDenied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.register(t, "u1@example.com", domain.RoleUser)
	b := h.book(t, u)

	if err := h.accounts.DeleteSelf(ctx, u); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("got %v", err)
	}

	// Issued but unverified.
	if _, err := h.accounts.RequestDeletion(ctx, u); err != nil {
		t.Fatal(err)
	}
	if err := h.accounts.DeleteSelf(ctx, u); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("got %v", err)
	}

	// A verified code for another action does not count.
	issued, err := h.bookings.RequestDeleteCode(ctx, u, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.bookings.VerifyDeleteCode(ctx, u, b.ID, issued.Code); err != nil {
		t.Fatal(err)
	}
	if err := h.accounts.DeleteSelf(ctx, u); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("got %v", err)
	}

	if acc, _ := h.store.Accounts().FindByID(ctx, u.ID); acc == nil {
		t.Fatal("account must survive denied deletes")
	}
}

func TestExpiredCodeReportsExpired(t *testing.T) {
	tests := []struct {
		name    string
		wait    time.Duration
		wantErr error
	}{
		{"just before expiry", 10*time.Minute - time.Second, nil},
		{"at expiry", 10 * time.Minute, domain.ErrExpired},
		{"eleven minutes", 11 * time.Minute, domain.ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			u := h.register(t, "u1@example.com", domain.RoleUser)

			issued, err := h.accounts.RequestDeletion(ctx, u)
			if err != nil {
				t.Fatal(err)
			}
			h.clock.Advance(tt.wait)

			_, err = h.accounts.VerifyDeletion(ctx, u, issued.Code)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyMismatchesAreNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u1 := h.register(t, "u1@example.com", domain.RoleUser)
	u2 := h.register(t, "u2@example.com", domain.RoleUser)

	issued, err := h.accounts.RequestDeletion(ctx, u1)
	if err != nil {
		t.Fatal(err)
	}
	wrong := "000000"
	if issued.Code == wrong {
		wrong = "000001"
	}

	if _, err := h.accounts.VerifyDeletion(ctx, u1, wrong); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("wrong code: %v", err)
	}
	if _, err := h.accounts.VerifyDeletion(ctx, u2, issued.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("wrong account: %v", err)
	}
	if _, err := h.accounts.VerifyDeletion(ctx, u1, "12ab56"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("malformed code: %v", err)
	}

	// The failed attempts did not consume it.
	if _, err := h.accounts.VerifyDeletion(ctx, u1, issued.Code); err != nil {
		t.Fatal(err)
	}
}

func TestResendReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u1 := h.register(t, "u1@example.com", domain.RoleUser)
	u2 := h.register(t, "u2@example.com", domain.RoleUser)

	first, err := h.accounts.RequestDeletion(ctx, u1)
	if err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(8 * time.Minute)

	if _, err := h.otp.Resend(ctx, u2, first.Challenge.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign resend: %v", err)
	}

	again, err := h.otp.Resend(ctx, u1, first.Challenge.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Challenge.ID != first.Challenge.ID {
		t.Fatalf("resend changed id %d -> %d", first.Challenge.ID, again.Challenge.ID)
	}
	if want := h.clock.Now().Add(10 * time.Minute); !again.Challenge.ExpiresAt.Equal(want) {
		t.Fatalf("expiry not renewed: %v", again.Challenge.ExpiresAt)
	}
	if h.inbox.last().Code != again.Code {
		t.Fatal("resend must notify the fresh code")
	}

	// Past the original window, inside the renewed one.
	h.clock.Advance(5 * time.Minute)
	if _, err := h.accounts.VerifyDeletion(ctx, u1, again.Code); err != nil {
		t.Fatal(err)
	}
	if _, err := h.otp.Resend(ctx, u1, first.Challenge.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("resend of used challenge: %v", err)
	}
}

func TestListPendingIsTimeDerived(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.register(t, "u1@example.com", domain.RoleUser)

	a, _ := h.accounts.RequestDeletion(ctx, u)
	h.clock.Advance(6 * time.Minute)
	b, _ := h.accounts.RequestDeletion(ctx, u)
	c, _ := h.accounts.RequestDeletion(ctx, u)
	if b.Challenge.ID == c.Challenge.ID {
		t.Fatal("concurrent requests must yield separate challenges")
	}

	if _, err := h.accounts.VerifyDeletion(ctx, u, c.Code); err != nil {
		t.Fatal(err)
	}

	pending, err := h.otp.ListPending(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[int64]bool{}
	for _, p := range pending {
		ids[p.ID] = true
	}
	if !ids[a.Challenge.ID] || !ids[b.Challenge.ID] || ids[c.Challenge.ID] {
		t.Fatalf("pending = %v", ids)
	}

	h.clock.Advance(5 * time.Minute)
	pending, _ = h.otp.ListPending(ctx, u)
	for _, p := range pending {
		if p.ID == a.Challenge.ID {
			t.Fatal("expired challenge still pending")
		}
	}
}

func TestNotificationFailureKeepsChallenge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.inbox.err = errors.New("mail relay down")
	u := h.register(t, "u1@example.com", domain.RoleUser)

	issued, err := h.accounts.RequestDeletion(ctx, u)
	if err != nil {
		t.Fatalf("issuance must survive a failed notification: %v", err)
	}
	if _, err := h.accounts.VerifyDeletion(ctx, u, issued.Code); err != nil {
		t.Fatal(err)
	}
}

func TestBookingDeleteGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, requireBookingOTP)
	u := h.register(t, "u1@example.com", domain.RoleUser)
	other := h.register(t, "u2@example.com", domain.RoleUser)
	admin := h.register(t, "admin@example.com", domain.RoleAdmin)
	b1 := h.book(t, u)
	b2 := h.book(t, u)

	if _, err := h.bookings.Delete(ctx, u, b1.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("ungated delete: %v", err)
	}
	if _, err := h.bookings.RequestDeleteCode(ctx, other, b1.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("foreign code request: %v", err)
	}

	issued, err := h.bookings.RequestDeleteCode(ctx, u, b1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if issued.Challenge.TargetBookingID == nil || *issued.Challenge.TargetBookingID != b1.ID {
		t.Fatalf("target = %v", issued.Challenge.TargetBookingID)
	}
	if _, err := h.bookings.VerifyDeleteCode(ctx, u, b2.ID, issued.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("code for b1 verified against b2: %v", err)
	}
	if _, err := h.bookings.VerifyDeleteCode(ctx, u, b1.ID, issued.Code); err != nil {
		t.Fatal(err)
	}

	if _, err := h.bookings.Delete(ctx, u, b2.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("b1's code unlocked b2: %v", err)
	}
	if id, err := h.bookings.Delete(ctx, u, b1.ID); err != nil || id != b1.ID {
		t.Fatalf("gated delete: %d %v", id, err)
	}
	if _, _, challenges := h.store.Counts(); challenges != 0 {
		t.Fatalf("gate challenge left behind: %d", challenges)
	}

	if _, err := h.bookings.Delete(ctx, admin, b2.ID); err != nil {
		t.Fatalf("admin deletes are not gated: %v", err)
	}
}

func TestRegistrationRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.register(t, "u1@example.com", domain.RoleUser)

	_, err := h.accounts.Register(ctx, &domain.RegisterRequest{
		Email: "u1@example.com", Password: "another-pass", FullName: "Dup",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := h.accounts.Login(ctx, &domain.LoginRequest{Email: "u1@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("first account must be unaffected: %v", err)
	}
	if acc, _ := h.accounts.Resolve(ctx, "u1@example.com"); acc == nil || acc.ID != first.ID || acc.FullName != first.FullName {
		t.Fatalf("first account changed: %+v", acc)
	}

	closed := newHarness(t, closedSignup)
	_, err = closed.accounts.Register(ctx, &domain.RegisterRequest{
		Email: "boss@example.com", Password: "correct-horse", FullName: "Boss", Role: "superadmin",
	})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("privileged signup: %v", err)
	}
	plain := closed.register(t, "plain@example.com", "")
	if plain.Role != domain.RoleUser {
		t.Fatalf("default role = %s", plain.Role)
	}

	_, err = h.accounts.Register(ctx, &domain.RegisterRequest{
		Email: "x@example.com", Password: "correct-horse", FullName: "X", Role: "owner",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown role: %v", err)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "u1@example.com", domain.RoleUser)

	if _, err := h.accounts.Login(ctx, &domain.LoginRequest{Email: "u1@example.com", Password: "wrong-pass"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := h.accounts.Login(ctx, &domain.LoginRequest{Email: "U1@example.com", Password: "correct-horse"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("email must be case-sensitive: %v", err)
	}

	tok, err := h.accounts.Login(ctx, &domain.LoginRequest{Email: " u1@example.com ", Password: "correct-horse"})
	if err != nil {
		t.Fatal(err)
	}
	if tok.TokenType != "bearer" || tok.AccessToken == "" || tok.ExpiresIn != 3600 {
		t.Fatalf("token = %+v", tok)
	}
}

func TestUpdateSelf(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.register(t, "u1@example.com", domain.RoleUser)
	h.register(t, "taken@example.com", domain.RoleUser)

	name := "Renamed"
	pass := "brand-new-pass"
	updated, err := h.accounts.UpdateSelf(ctx, u, &domain.UpdateAccountRequest{FullName: &name, Password: &pass})
	if err != nil {
		t.Fatal(err)
	}
	if updated.FullName != "Renamed" || updated.Email != "u1@example.com" || updated.PasswordHash == u.PasswordHash {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.PasswordHash == pass {
		t.Fatal("password stored in clear")
	}
	if _, err := h.accounts.Login(ctx, &domain.LoginRequest{Email: "u1@example.com", Password: pass}); err != nil {
		t.Fatalf("new password: %v", err)
	}

	taken := "taken@example.com"
	if _, err := h.accounts.UpdateSelf(ctx, updated, &domain.UpdateAccountRequest{Email: &taken}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("email collision: %v", err)
	}
	short := "short"
	if _, err := h.accounts.UpdateSelf(ctx, updated, &domain.UpdateAccountRequest{Password: &short}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("short password: %v", err)
	}
}
