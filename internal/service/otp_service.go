package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/notify"
	"github.com/diagnosis/roombook/internal/repository"
	"github.com/diagnosis/roombook/pkg/config"
	"github.com/diagnosis/roombook/pkg/events"
	"github.com/diagnosis/roombook/pkg/logger"
)

// OTPService issues and verifies one-time codes bound to an account, an
// action and optionally a target booking. Codes are stored as bcrypt hashes.
type OTPService interface {
	Issue(ctx context.Context, account *domain.Account, action domain.OTPAction, target *int64) (*domain.IssuedOTP, error)
	Verify(ctx context.Context, account *domain.Account, code string, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error)
	Resend(ctx context.Context, account *domain.Account, challengeID int64) (*domain.IssuedOTP, error)
	ListPending(ctx context.Context, account *domain.Account) ([]domain.OTPChallenge, error)
	// Consumed returns the newest verified challenge for the scope, or nil.
	Consumed(ctx context.Context, accountID int64, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error)
	Discard(ctx context.Context, challengeID int64) error
}

type Option func(*otpService)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *otpService) { s.now = now }
}

type otpService struct {
	repo     repository.OTPRepository
	notifier notify.Notifier
	eventBus events.Publisher
	config   config.OTPConfig
	now      func() time.Time
}

func NewOTPService(
	repo repository.OTPRepository,
	notifier notify.Notifier,
	eventBus events.Publisher,
	cfg config.OTPConfig,
	opts ...Option,
) OTPService {
	s := &otpService{
		repo:     repo,
		notifier: notifier,
		eventBus: eventBus,
		config:   cfg,
		now:      time.Now,
	}
	if s.config.TTL <= 0 {
		s.config.TTL = 10 * time.Minute
	}
	if s.config.HashCost < bcrypt.MinCost || s.config.HashCost > bcrypt.MaxCost {
		s.config.HashCost = bcrypt.DefaultCost
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *otpService) Issue(ctx context.Context, account *domain.Account, action domain.OTPAction, target *int64) (*domain.IssuedOTP, error) {
	if err := checkScope(action, target); err != nil {
		return nil, err
	}

	code, hash, err := s.newCode()
	if err != nil {
		return nil, err
	}

	challenge, err := s.repo.Create(ctx, &domain.NewOTPChallenge{
		UserID:          account.ID,
		CodeHash:        hash,
		Action:          action,
		TargetBookingID: target,
		ExpiresAt:       s.now().Add(s.config.TTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create otp challenge: %w", err)
	}

	s.dispatch(ctx, account, challenge, code)
	s.publish(ctx, events.OTPIssued, challenge)

	return &domain.IssuedOTP{Challenge: challenge, Code: code}, nil
}

func (s *otpService) Verify(ctx context.Context, account *domain.Account, code string, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error) {
	if err := checkScope(action, target); err != nil {
		return nil, err
	}
	if !domain.ValidOTPCode(code) {
		return nil, &domain.ValidationError{Field: "otp_code", Message: "must be 6 digits"}
	}

	candidates, err := s.repo.ListUnused(ctx, account.ID, action, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load otp challenges: %w", err)
	}

	now := s.now()
	var match, expired *domain.OTPChallenge
	for i := range candidates {
		c := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
			continue
		}
		if c.Expired(now) {
			expired = c
			continue
		}
		match = c
		break
	}

	switch {
	case match != nil:
	case expired != nil:
		return nil, fmt.Errorf("%w: otp code has expired, request a new one", domain.ErrExpired)
	default:
		return nil, fmt.Errorf("%w: invalid otp code", domain.ErrNotFound)
	}

	ok, err := s.repo.MarkUsed(ctx, match.ID, domain.ApproverSystem)
	if err != nil {
		return nil, fmt.Errorf("failed to consume otp challenge: %w", err)
	}
	if !ok {
		// Consumed by a concurrent request.
		return nil, fmt.Errorf("%w: invalid otp code", domain.ErrNotFound)
	}

	approver := domain.ApproverSystem
	match.Used = true
	match.ApprovedBy = &approver
	s.publish(ctx, events.OTPVerified, match)

	return match, nil
}

func (s *otpService) Resend(ctx context.Context, account *domain.Account, challengeID int64) (*domain.IssuedOTP, error) {
	existing, err := s.repo.FindByID(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load otp challenge: %w", err)
	}
	if existing == nil || existing.UserID != account.ID || existing.Used {
		return nil, fmt.Errorf("%w: otp challenge not found", domain.ErrNotFound)
	}

	code, hash, err := s.newCode()
	if err != nil {
		return nil, err
	}

	challenge, err := s.repo.Replace(ctx, challengeID, hash, s.now().Add(s.config.TTL))
	if err != nil {
		return nil, fmt.Errorf("failed to replace otp code: %w", err)
	}
	if challenge == nil {
		return nil, fmt.Errorf("%w: otp challenge not found", domain.ErrNotFound)
	}

	s.dispatch(ctx, account, challenge, code)
	s.publish(ctx, events.OTPIssued, challenge)

	return &domain.IssuedOTP{Challenge: challenge, Code: code}, nil
}

func (s *otpService) ListPending(ctx context.Context, account *domain.Account) ([]domain.OTPChallenge, error) {
	pending, err := s.repo.ListPending(ctx, account.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending otp challenges: %w", err)
	}
	return pending, nil
}

func (s *otpService) Consumed(ctx context.Context, accountID int64, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error) {
	c, err := s.repo.FindConsumed(ctx, accountID, action, target)
	if err != nil {
		return nil, fmt.Errorf("failed to look up verified otp challenge: %w", err)
	}
	return c, nil
}

func (s *otpService) Discard(ctx context.Context, challengeID int64) error {
	if _, err := s.repo.Delete(ctx, challengeID); err != nil {
		return fmt.Errorf("failed to delete otp challenge: %w", err)
	}
	return nil
}

// newCode draws a uniform 6 digit code and its hash.
func (s *otpService) newCode() (code, hash string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	code = fmt.Sprintf("%06d", n.Int64())

	h, err := bcrypt.GenerateFromPassword([]byte(code), s.config.HashCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash otp code: %w", err)
	}
	return code, string(h), nil
}

func (s *otpService) dispatch(ctx context.Context, account *domain.Account, c *domain.OTPChallenge, code string) {
	msg := notify.Message{
		To:              account.Email,
		Name:            account.FullName,
		Action:          c.Action,
		Code:            code,
		ChallengeID:     c.ID,
		TargetBookingID: c.TargetBookingID,
		ExpiresAt:       c.ExpiresAt,
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to send OTP notification", "error", err, "challenge_id", c.ID)
	}
}

func (s *otpService) publish(ctx context.Context, subject string, c *domain.OTPChallenge) {
	event := events.OTPEvent{
		ChallengeID:     c.ID,
		AccountID:       c.UserID,
		Action:          string(c.Action),
		TargetBookingID: c.TargetBookingID,
		ExpiresAt:       c.ExpiresAt,
		OccurredAt:      s.now(),
	}
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish otp event", "error", err, "subject", subject, "challenge_id", c.ID)
	}
}

func checkScope(action domain.OTPAction, target *int64) error {
	if !action.Valid() {
		return &domain.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}
	}
	if action.Targeted() != (target != nil) {
		return &domain.ValidationError{Field: "target_booking_id", Message: "target does not match action"}
	}
	return nil
}
