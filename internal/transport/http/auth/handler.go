// Package auth exposes the registration flow over HTTP: register, sign-in,
// session probe, and the email-verification callback.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"tutorbase/internal/identity"
	"tutorbase/internal/onboarding"
	"tutorbase/internal/platform/middleware"
	jsonwriter "tutorbase/internal/transport/http/json"
	"tutorbase/internal/transport/http/shared"
	"tutorbase/internal/verification"
	dErrors "tutorbase/pkg/domain-errors"
	"tutorbase/pkg/domain"
	strutil "tutorbase/pkg/strings"
	"tutorbase/pkg/validation"
)

// OnboardingService is the registration orchestrator consumed by the handler.
type OnboardingService interface {
	Register(ctx context.Context, clientID string, in onboarding.RegisterInput) (*identity.Account, error)
	SignIn(ctx context.Context, clientID, email, password string) (*onboarding.SignInResult, error)
	Session(ctx context.Context, clientID, accessToken string) (*onboarding.SessionResult, error)
}

// VerificationService handles the email-verification callback.
type VerificationService interface {
	Verify(ctx context.Context, clientID string, query url.Values) verification.Result
}

// Handler serves the /auth endpoints.
type Handler struct {
	onboarding   OnboardingService
	verification VerificationService
	logger       *slog.Logger
}

// NewHandler constructs the auth handler.
func NewHandler(onboardingSvc OnboardingService, verificationSvc VerificationService, logger *slog.Logger) *Handler {
	return &Handler{
		onboarding:   onboardingSvc,
		verification: verificationSvc,
		logger:       logger,
	}
}

type registerRequest struct {
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required,min=8"`
	Role     string            `json:"role" validate:"required,oneof=student tutor"`
	FormData map[string]string `json:"formData"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,notblank"`
}

type accountResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

func accountToResponse(a *identity.Account) accountResponse {
	return accountResponse{
		ID:             a.ID.String(),
		Email:          a.Email,
		EmailConfirmed: a.EmailConfirmed,
	}
}

// Register handles POST /auth/register. The form payload is stashed for
// deferred provisioning and only the identity account is created now; the
// caller is told to go verify their email.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	strutil.TrimStrings(&req.Email, &req.Role)
	strutil.TrimMap(req.FormData)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "role must be student or tutor"))
		return
	}
	if req.FormData == nil {
		req.FormData = map[string]string{}
	}

	account, err := h.onboarding.Register(r.Context(), middleware.GetClientID(r.Context()), onboarding.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		FormData: req.FormData,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonwriter.WriteJSON(w, http.StatusCreated, map[string]any{
		"user":    accountToResponse(account),
		"message": "Check your email to verify your account",
	})
}

// SignIn handles POST /auth/signin. A successful sign-in is also a
// resumption trigger: any pending submission left by a verified registration
// is provisioned before the session is returned.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	strutil.TrimStrings(&req.Email)
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.onboarding.SignIn(r.Context(), middleware.GetClientID(r.Context()), req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	body := map[string]any{
		"access_token":  result.Session.AccessToken,
		"refresh_token": result.Session.RefreshToken,
		"expires_in":    result.Session.ExpiresIn,
	}
	if result.Session.Account != nil {
		body["user"] = accountToResponse(result.Session.Account)
	}
	if result.ProfileMessage != "" {
		body["profile_message"] = result.ProfileMessage
	}
	jsonwriter.WriteJSON(w, http.StatusOK, body)
}

// Session handles GET /auth/session. It requires a Bearer token and doubles
// as the second resumption trigger.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	_, token, ok := middleware.GetSession(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	result, err := h.onboarding.Session(r.Context(), middleware.GetClientID(r.Context()), token)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	body := map[string]any{
		"user": accountToResponse(result.Account),
	}
	if result.ProfileMessage != "" {
		body["profile_message"] = result.ProfileMessage
	}
	jsonwriter.WriteJSON(w, http.StatusOK, body)
}

// Verify handles GET /auth/verify, the target of emailed verification links.
// The terminal state travels in the body; an unusable or rejected link is a
// 400 so clients can branch on status alone.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	result := h.verification.Verify(r.Context(), middleware.GetClientID(r.Context()), r.URL.Query())

	body := map[string]any{
		"state":   string(result.State),
		"message": result.Message,
	}
	if result.State == verification.StateError {
		jsonwriter.WriteJSON(w, http.StatusBadRequest, body)
		return
	}

	body["auto_advance_ms"] = result.AutoAdvance.Milliseconds()
	body["continue_url"] = result.ContinueURL
	if result.Session != nil {
		body["access_token"] = result.Session.AccessToken
		body["refresh_token"] = result.Session.RefreshToken
		if result.Session.Account != nil {
			body["user"] = accountToResponse(result.Session.Account)
		}
	}
	jsonwriter.WriteJSON(w, http.StatusOK, body)
}
