package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	identityservice "github.com/gaini88088/expert-pancake/internal/identity/service"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	verificationservice "github.com/gaini88088/expert-pancake/internal/verification/service"
)

// VerificationHandler serves the step-up verification flow that upgrades a
// suspicious session to trusted.
type VerificationHandler struct {
	verification *verificationservice.Service
	verifier     *identityservice.Verifier
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler(verification *verificationservice.Service, verifier *identityservice.Verifier, validate *validator.Validate, logger *slog.Logger) *VerificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationHandler{
		verification: verification,
		verifier:     verifier,
		validate:     validate,
		logger:       logger.With("component", "verification_handler"),
	}
}

type beginResponse struct {
	ChallengeID string    `json:"challengeId"`
	ExpiresAt   time.Time `json:"expiresAt"`
	// Code is set only when the service runs with the dev flag that
	// returns codes in-band instead of delivering them.
	Code string `json:"code,omitempty"`
}

// Begin issues a verification code for the calling session and sends it
// through the notification channel.
func (h *VerificationHandler) Begin(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	result, err := h.verification.Begin(r.Context(), userID, sessionID)
	if err != nil {
		h.logger.Error("verification begin failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "starting verification failed")
		return
	}
	respondJSON(w, http.StatusAccepted, beginResponse{
		ChallengeID: result.Challenge.ID,
		ExpiresAt:   result.Challenge.ExpiresAt,
		Code:        result.Code,
	})
}

type confirmRequest struct {
	Method string `json:"method" validate:"omitempty,oneof=code totp"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

// Confirm checks a verification code or authenticator passcode and, on
// success, upgrades the calling session to trusted.
func (h *VerificationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondValidationErrors(w, validationDetail(err))
		return
	}

	var sess *domain.Session
	var err error
	if req.Method == "totp" {
		sess, err = h.verification.ConfirmTOTP(r.Context(), userID, sessionID, req.Code)
	} else {
		sess, err = h.verification.Confirm(r.Context(), userID, sessionID, req.Code)
	}
	if err != nil {
		h.respondVerificationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session": toSessionJSON(sess)})
}

type enrollTOTPResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// EnrollTOTP provisions an authenticator app secret for the caller.
func (h *VerificationHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	secret, url, err := h.verifier.EnrollTOTP(r.Context(), userID)
	if err != nil {
		if errors.Is(err, identityservice.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("totp enrollment failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}
	respondJSON(w, http.StatusOK, enrollTOTPResponse{Secret: secret, URL: url})
}

func (h *VerificationHandler) respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verificationservice.ErrNoChallenge):
		respondError(w, http.StatusNotFound, "no active verification challenge")
	case errors.Is(err, verificationservice.ErrCodeExpired):
		respondError(w, http.StatusBadRequest, "verification code expired, request a new one")
	case errors.Is(err, verificationservice.ErrCodeMismatch):
		respondError(w, http.StatusBadRequest, "verification code mismatch")
	case errors.Is(err, verificationservice.ErrTooManyAttempts):
		respondError(w, http.StatusTooManyRequests, "too many attempts, request a new code")
	case errors.Is(err, verificationservice.ErrNoTOTPEnrolled):
		respondError(w, http.StatusBadRequest, "no authenticator app enrolled")
	default:
		respondSessionError(w, h.logger, err, "verification failed")
	}
}
