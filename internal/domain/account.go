package domain

import (
	"net/mail"
	"strings"
	"time"
)

const MinPasswordLength = 8

type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Owner is the nested identity shown in elevated booking views.
type Owner struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

func (a *Account) Owner() Owner {
	return Owner{ID: a.ID, Email: a.Email, FullName: a.FullName, Role: a.Role}
}

type NewAccount struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
}

// AccountPatch holds already-hashed values; nil fields are left untouched.
type AccountPatch struct {
	Email        *string
	FullName     *string
	PasswordHash *string
}

func (p AccountPatch) IsEmpty() bool {
	return p.Email == nil && p.FullName == nil && p.PasswordHash == nil
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type UpdateAccountRequest struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Emails are case-sensitive keys, so only surrounding space is removed.
func (r *RegisterRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Role = strings.TrimSpace(r.Role)
}

func (r *RegisterRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Password) < MinPasswordLength {
		return invalid("password", "must be at least 8 characters")
	}
	if r.FullName == "" {
		return invalid("full_name", "is required")
	}
	if _, err := ParseRole(r.Role); err != nil {
		return err
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return invalid("email", "is required")
	}
	if r.Password == "" {
		return invalid("password", "is required")
	}
	return nil
}

func (r *UpdateAccountRequest) Normalize() {
	if r.Email != nil {
		v := strings.TrimSpace(*r.Email)
		r.Email = &v
	}
	if r.FullName != nil {
		v := strings.TrimSpace(*r.FullName)
		r.FullName = &v
	}
}

func (r *UpdateAccountRequest) Validate() error {
	if r.Email != nil {
		if err := validateEmail(*r.Email); err != nil {
			return err
		}
	}
	if r.FullName != nil && *r.FullName == "" {
		return invalid("full_name", "must not be empty")
	}
	if r.Password != nil && len(*r.Password) < MinPasswordLength {
		return invalid("password", "must be at least 8 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "invalid format")
	}
	return nil
}
