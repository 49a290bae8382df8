package handlers

import (
	"net/http"
	"time"

	"github.com/diagnosis/roombook/internal/domain"
)

type verifyOTPRequest struct {
	Code string `json:"otp_code"`
}

type issuedOTPResponse struct {
	Message         string           `json:"message"`
	OTPID           int64            `json:"otp_id"`
	Action          domain.OTPAction `json:"action_type"`
	TargetBookingID *int64           `json:"target_booking_id,omitempty"`
	ExpiresAt       time.Time        `json:"expires_at"`
	Code            string           `json:"otp_code,omitempty"`
}

type verifiedResponse struct {
	Message string `json:"message"`
	OTPID   int64  `json:"otp_id"`
}

// issuedResponse only carries the code when OTP_EXPOSE_CODE is set.
func (h *Handlers) issuedResponse(message string, issued *domain.IssuedOTP) issuedOTPResponse {
	resp := issuedOTPResponse{
		Message:         message,
		OTPID:           issued.Challenge.ID,
		Action:          issued.Challenge.Action,
		TargetBookingID: issued.Challenge.TargetBookingID,
		ExpiresAt:       issued.Challenge.ExpiresAt,
	}
	if h.config.ExposeCode {
		resp.Code = issued.Code
	}
	return resp
}

func (h *Handlers) RequestAccountDeletion(w http.ResponseWriter, r *http.Request) {
	issued, err := h.accountService.RequestDeletion(r.Context(), currentAccount(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.issuedResponse("OTP sent for account deletion", issued))
}

func (h *Handlers) VerifyAccountDeletion(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	challenge, err := h.accountService.VerifyDeletion(r.Context(), currentAccount(r), req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifiedResponse{
		Message: "OTP verified, you can now delete your account",
		OTPID:   challenge.ID,
	})
}

func (h *Handlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	issued, err := h.otpService.Resend(r.Context(), currentAccount(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.issuedResponse("OTP resent", issued))
}

func (h *Handlers) PendingOTPs(w http.ResponseWriter, r *http.Request) {
	pending, err := h.otpService.ListPending(r.Context(), currentAccount(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pending)
}
