package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/roombook/internal/domain"
	"github.com/diagnosis/roombook/internal/service"
	"github.com/diagnosis/roombook/pkg/config"
	"github.com/diagnosis/roombook/pkg/logger"
)

// Error codes carried in the JSON error body.
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeExpiredToken  = "EXPIRED_TOKEN"
	CodeInternalError = "INTERNAL_ERROR"
)

// TokenResolver turns a bearer token into its identity claim.
type TokenResolver interface {
	ResolveToken(token string) (string, error)
}

type Handlers struct {
	accountService service.AccountService
	bookingService service.BookingService
	otpService     service.OTPService
	tokens         TokenResolver
	config         config.OTPConfig
}

func New(
	accountService service.AccountService,
	bookingService service.BookingService,
	otpService service.OTPService,
	tokens TokenResolver,
	cfg config.OTPConfig,
) *Handlers {
	return &Handlers{
		accountService: accountService,
		bookingService: bookingService,
		otpService:     otpService,
		tokens:         tokens,
		config:         cfg,
	}
}

type ctxKey struct{}

// RequireAuth resolves the bearer token to a live account.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", CodeUnauthorized)
			return
		}

		email, err := h.tokens.ResolveToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Could not validate credentials", CodeUnauthorized)
			return
		}

		acc, err := h.accountService.Resolve(r.Context(), email)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "Could not validate credentials", CodeUnauthorized)
				return
			}
			writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, acc)
		ctx = context.WithValue(ctx, logger.AccountIDKey, acc.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentAccount(r *http.Request) *domain.Account {
	acc, _ := r.Context().Value(ctxKey{}).(*domain.Account)
	return acc
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "code": code})
}

// writeServiceError maps the domain error taxonomy onto HTTP.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Incorrect email or password", CodeUnauthorized)
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error(), CodeForbidden)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), CodeConflict)
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, err.Error(), CodeExpiredToken)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error", CodeInternalError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", CodeInvalidInput)
		return false
	}
	return true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid ID", CodeInvalidInput)
		return 0, false
	}
	return id, true
}
