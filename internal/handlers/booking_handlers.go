package handlers

import (
	"net/http"

	"github.com/diagnosis/roombook/internal/domain"
)

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := h.bookingService.Create(r.Context(), currentAccount(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	view, err := h.bookingService.Get(r.Context(), currentAccount(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// UpdateBooking serves PUT and PATCH alike: absent fields are left as stored.
func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var patch domain.BookingPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	result, err := h.bookingService.Update(r.Context(), currentAccount(r), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	deleted, err := h.bookingService.Delete(r.Context(), currentAccount(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.DeleteResult{Message: "Booking deleted successfully", ID: deleted})
}

// AdminView lists bookings with their owners nested.
func (h *Handlers) AdminView(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	views, err := h.bookingService.ListViews(r.Context(), currentAccount(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) RequestBookingOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	issued, err := h.bookingService.RequestDeleteCode(r.Context(), currentAccount(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.issuedResponse("OTP sent for booking deletion", issued))
}

func (h *Handlers) VerifyBookingOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	challenge, err := h.bookingService.VerifyDeleteCode(r.Context(), currentAccount(r), id, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifiedResponse{
		Message: "OTP verified, booking deletion authorised",
		OTPID:   challenge.ID,
	})
}
