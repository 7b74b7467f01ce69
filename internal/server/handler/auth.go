package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gaini88088/expert-pancake/internal/coordinator"
	identityservice "github.com/gaini88088/expert-pancake/internal/identity/service"
	"github.com/gaini88088/expert-pancake/internal/security"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	"github.com/gaini88088/expert-pancake/internal/session/domain"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
)

// AuthHandler handles registration, login, and logout.
type AuthHandler struct {
	verifier *identityservice.Verifier
	flows    *coordinator.Coordinator
	tokens   *security.TokenProvider
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(verifier *identityservice.Verifier, flows *coordinator.Coordinator, tokens *security.TokenProvider, validate *validator.Validate, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		verifier: verifier,
		flows:    flows,
		tokens:   tokens,
		validate: validate,
		logger:   logger.With("component", "auth_handler"),
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=200"`
}

// Register creates an account. Password strength rules live in the identity
// service; this layer validates shape only.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondValidationErrors(w, validationDetail(err))
		return
	}

	user, err := h.verifier.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, identityservice.ErrEmailAlreadyRegistered):
			respondError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, identityservice.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("registration failed", "error", err)
			respondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserJSON(user)})
}

type loginRequest struct {
	Email              string        `json:"email" validate:"required,email"`
	Password           string        `json:"password" validate:"required"`
	DeviceFingerprint  string        `json:"deviceFingerprint" validate:"required,max=512"`
	DeviceClass        string        `json:"deviceClass" validate:"required,oneof=web-browser mobile-app desktop-app"`
	Location           *locationJSON `json:"location"`
	LogoutOtherDevices bool          `json:"logoutOtherDevices"`
}

type loginResponse struct {
	Token                string      `json:"token"`
	ExpiresAt            time.Time   `json:"expiresAt"`
	Session              sessionJSON `json:"session"`
	VerificationRequired bool        `json:"verificationRequired"`
	OthersTerminated     int         `json:"othersTerminated,omitempty"`
	BulkLogoutIncomplete bool        `json:"bulkLogoutIncomplete,omitempty"`
}

// Login verifies credentials, records the device's session, and returns a
// bearer token bound to it. A suspicious classification still logs in; the
// response flags that verification is required.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondValidationErrors(w, validationDetail(err))
		return
	}

	user, err := h.verifier.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identityservice.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("credential check failed", "error", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	var loc *domain.Location
	if req.Location != nil {
		loc = &domain.Location{Lat: req.Location.Lat, Lon: req.Location.Lon}
	}
	result, err := h.flows.LoginNewDevice(r.Context(), coordinator.LoginInput{
		UserID:             user.ID,
		DeviceFingerprint:  req.DeviceFingerprint,
		DeviceClass:        domain.DeviceClass(req.DeviceClass),
		IPAddress:          middleware.ClientIP(r.Context()),
		Location:           loc,
		LogoutOtherDevices: req.LogoutOtherDevices,
	})
	if err != nil {
		respondSessionError(w, h.logger, err, "login failed")
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ID, result.Session.ID)
	if err != nil {
		h.logger.Error("token issue failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:                token,
		ExpiresAt:            expiresAt,
		Session:              toSessionJSON(result.Session),
		VerificationRequired: result.VerificationRequired,
		OthersTerminated:     result.OthersTerminated,
		BulkLogoutIncomplete: result.BulkLogoutIncomplete,
	})
}

// Logout terminates the caller's own session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	sessionID, _ := middleware.GetSessionID(r.Context())

	if err := h.flows.Logout(r.Context(), userID, sessionID); err != nil {
		respondSessionError(w, h.logger, err, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondSessionError maps session manager sentinels onto HTTP statuses.
func respondSessionError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, sessionservice.ErrAuthenticationRequired):
		respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, sessionservice.ErrNotFound):
		respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, sessionservice.ErrConflict):
		respondError(w, http.StatusConflict, "another change to your sessions is in flight, retry")
	case errors.Is(err, sessionservice.ErrInvalidDeviceClass),
		errors.Is(err, sessionservice.ErrFingerprintRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
