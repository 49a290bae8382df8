// Package credential hashes passwords and issues and resolves bearer tokens.
package credential

import (
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/pkg/auth"
)

type Service struct {
	secret string
	ttl    time.Duration
	params *argon2id.Params
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{secret: secret, ttl: ttl, params: argon2id.DefaultParams}
}

// WithParams swaps the argon2id cost parameters (tests use cheap ones).
func (s *Service) WithParams(p *argon2id.Params) *Service {
	s.params = p
	return s
}

func (s *Service) Hash(plaintext string) (string, error) {
	hash, err := argon2id.CreateHash(plaintext, s.params)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) Verify(plaintext, hash string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(plaintext, hash)
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return ok, nil
}

func (s *Service) IssueToken(acc *domain.Account) (string, time.Duration, error) {
	tok, err := auth.NewAccessToken(acc.ID, acc.Email, string(acc.Role), s.secret, s.ttl)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create access token: %w", err)
	}
	return tok, s.ttl, nil
}

// ResolveToken returns the identity claim (the account email).
func (s *Service) ResolveToken(token string) (string, error) {
	claims, err := auth.Parse(token, s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	return claims.Subject, nil
}
