package handlers

import (
	"net/http"
)

// ListUsers is superadmin only.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	accounts, err := h.accountService.List(r.Context(), currentAccount(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

// AuditLog lists modified bookings with who touched them last.
func (h *Handlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	views, err := h.bookingService.AuditLog(r.Context(), currentAccount(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}
