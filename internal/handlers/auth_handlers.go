package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/diagnosis/roombook/internal/domain"
)

func (h *Handlers) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Roombook booking API"})
}

// Register handles account sign-up
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acc, err := h.accountService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user_id": acc.ID,
	})
}

// Login accepts JSON {email,password} or an OAuth2 style password form
// (username, password).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form body", CodeInvalidInput)
			return
		}
		req.Email = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	default:
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	token, err := h.accountService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}
