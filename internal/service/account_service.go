package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/roombook/internal/access"
	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/repository"
	"github.com/diagnosis/roombook/pkg/config"
	"github.com/diagnosis/roombook/pkg/events"
	"github.com/diagnosis/roombook/pkg/logger"
)

// Credentials is the slice of credential.Service the account flows need.
type Credentials interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
	IssueToken(acc *domain.Account) (string, time.Duration, error)
}

type AccountService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenResponse, error)
	// Resolve maps a token's identity claim back to a live account.
	Resolve(ctx context.Context, email string) (*domain.Account, error)
	UpdateSelf(ctx context.Context, actor *domain.Account, req *domain.UpdateAccountRequest) (*domain.Account, error)
	RequestDeletion(ctx context.Context, actor *domain.Account) (*domain.IssuedOTP, error)
	VerifyDeletion(ctx context.Context, actor *domain.Account, code string) (*domain.OTPChallenge, error)
	DeleteSelf(ctx context.Context, actor *domain.Account) error
	List(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.Account, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	credentials Credentials
	otp         OTPService
	eventBus    events.Publisher
	config      config.AuthConfig
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	credentials Credentials,
	otp OTPService,
	eventBus events.Publisher,
	cfg config.AuthConfig,
) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		credentials: credentials,
		otp:         otp,
		eventBus:    eventBus,
		config:      cfg,
	}
}

func (s *accountService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.Account, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role, _ := domain.ParseRole(req.Role)
	if role.Elevated() && !s.config.AllowPrivilegedSignup {
		return nil, fmt.Errorf("%w: role %s cannot be self-assigned", domain.ErrPermissionDenied, role)
	}

	hash, err := s.credentials.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	acc, err := s.accountRepo.Create(ctx, &domain.NewAccount{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.publish(ctx, events.AccountRegistered, acc)
	return acc, nil
}

func (s *accountService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.TokenResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	acc, err := s.accountRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: incorrect email or password", domain.ErrInvalidCredentials)
	}

	ok, err := s.credentials.Verify(req.Password, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: incorrect email or password", domain.ErrInvalidCredentials)
	}

	token, ttl, err := s.credentials.IssueToken(acc)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

func (s *accountService) Resolve(ctx context.Context, email string) (*domain.Account, error) {
	acc, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: account no longer exists", domain.ErrInvalidCredentials)
	}
	return acc, nil
}

func (s *accountService) UpdateSelf(ctx context.Context, actor *domain.Account, req *domain.UpdateAccountRequest) (*domain.Account, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patch := domain.AccountPatch{Email: req.Email, FullName: req.FullName}
	if req.Password != nil {
		hash, err := s.credentials.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.IsEmpty() {
		return actor, nil
	}

	updated, err := s.accountRepo.Update(ctx, actor.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: account %d", domain.ErrNotFound, actor.ID)
	}
	return updated, nil
}

func (s *accountService) RequestDeletion(ctx context.Context, actor *domain.Account) (*domain.IssuedOTP, error) {
	return s.otp.Issue(ctx, actor, domain.ActionDeleteAccount, nil)
}

func (s *accountService) VerifyDeletion(ctx context.Context, actor *domain.Account, code string) (*domain.OTPChallenge, error) {
	return s.otp.Verify(ctx, actor, code, domain.ActionDeleteAccount, nil)
}

// DeleteSelf removes the consumed challenge before the account. A failure in
// between leaves only a spent challenge behind.
func (s *accountService) DeleteSelf(ctx context.Context, actor *domain.Account) error {
	challenge, err := s.otp.Consumed(ctx, actor.ID, domain.ActionDeleteAccount, nil)
	if err != nil {
		return err
	}
	if challenge == nil {
		return fmt.Errorf("%w: request and verify an account deletion code first", domain.ErrPermissionDenied)
	}

	if err := s.otp.Discard(ctx, challenge.ID); err != nil {
		return err
	}

	deleted, err := s.accountRepo.Delete(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: account %d", domain.ErrNotFound, actor.ID)
	}

	logger.InfoContext(ctx, "Account deleted", "account_id", actor.ID)
	s.publish(ctx, events.AccountDeleted, actor)
	return nil
}

func (s *accountService) List(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.Account, error) {
	if access.Rule(actor.Role, access.UserList) != access.AllowFull {
		return nil, fmt.Errorf("%w: superadmin privileges required", domain.ErrPermissionDenied)
	}
	accounts, err := s.accountRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *accountService) publish(ctx context.Context, subject string, acc *domain.Account) {
	event := events.AccountEvent{
		AccountID:  acc.ID,
		Email:      acc.Email,
		Role:       string(acc.Role),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish account event", "error", err, "subject", subject, "account_id", acc.ID)
	}
}
