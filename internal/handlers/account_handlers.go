package handlers

import (
	"net/http"

	"github.com/diagnosis/roombook/internal/domain"
)

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentAccount(r))
}

// UpdateMe serves both PUT and PATCH; only supplied fields change.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acc, err := h.accountService.UpdateSelf(r.Context(), currentAccount(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// DeleteMe needs a verified account deletion code, see /otp.
func (h *Handlers) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.DeleteSelf(r.Context(), currentAccount(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	bookings, err := h.bookingService.ListMine(r.Context(), currentAccount(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookings)
}
