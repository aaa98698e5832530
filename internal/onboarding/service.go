// Package onboarding orchestrates account registration and the triggers that
// resume deferred profile provisioning.
//
// Registration is deliberately write-light: the form payload is stashed in
// the pending store and only the identity account is created. Profile rows
// are provisioned later, by whichever authenticated trigger fires first after
// the owner verifies their email: sign-in or an authenticated session probe.
package onboarding

import (
	"context"
	"errors"
	"log/slog"

	"tutorbase/internal/audit"
	"tutorbase/internal/identity"
	"tutorbase/internal/pending"
	"tutorbase/internal/platform/metrics"
	"tutorbase/internal/profile/service"
	"tutorbase/internal/sentinel"
	dErrors "tutorbase/pkg/domain-errors"
	"tutorbase/pkg/domain"
	"tutorbase/pkg/email"
)

// Provisioner performs the deferred profile write sequence for a verified
// user. Implemented by the profile service.
type Provisioner interface {
	Provision(ctx context.Context, userID domain.UserID, role domain.Role, formData map[string]string) (service.Outcome, error)
}

// AuditPublisher records registration and sign-in events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RegisterInput carries a validated registration submission.
type RegisterInput struct {
	Email    string
	Password string
	Role     domain.Role
	FormData map[string]string
}

// SignInResult is a session plus whatever provisioning resumption produced.
type SignInResult struct {
	Session *identity.Session
	// ProfileMessage is non-empty when a pending submission was provisioned
	// during this sign-in.
	ProfileMessage string
}

// SessionResult describes the account behind an access token plus any
// resumed provisioning outcome.
type SessionResult struct {
	Account        *identity.Account
	ProfileMessage string
}

// Service is the registration orchestrator.
type Service struct {
	identity    identity.Client
	pending     pending.Store
	provisioner Provisioner
	logger      *slog.Logger
	auditP      AuditPublisher
	metrics     *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher enables audit event emission.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditP = publisher
	}
}

// WithMetrics enables registration and sign-in counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the registration orchestrator.
func New(idClient identity.Client, pendingStore pending.Store, provisioner Provisioner, opts ...Option) (*Service, error) {
	if idClient == nil || pendingStore == nil || provisioner == nil {
		return nil, errors.New("identity client, pending store and provisioner are required")
	}
	svc := &Service{
		identity:    idClient,
		pending:     pendingStore,
		provisioner: provisioner,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Register stashes the form payload and creates the identity account.
//
// The pending write happens before account creation: if account creation
// fails, the stash stays behind so the user can retry without refilling the
// form; if the stash write fails, no half-registered account exists. The
// returned account is unverified and owns no profile rows yet.
func (s *Service) Register(ctx context.Context, clientID string, in RegisterInput) (*identity.Account, error) {
	if err := s.pending.Save(ctx, clientID, in.Role, in.FormData); err != nil {
		s.logger.ErrorContext(ctx, "failed to stash pending submission",
			"client_id", clientID,
			"role", in.Role.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "registration is temporarily unavailable")
	}
	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventPendingSubmissionSet),
		ClientID: clientID,
		Email:    in.Email,
		Details:  map[string]string{"role": in.Role.String()},
	})

	fullName := in.FormData["fullName"]
	if fullName == "" {
		first, last := email.DeriveNameFromEmail(in.Email)
		fullName = first + " " + last
	}
	metadata := map[string]any{
		"role":     in.Role.String(),
		"fullName": fullName,
	}
	account, err := s.identity.CreateAccount(ctx, in.Email, in.Password, metadata)
	if err != nil {
		// The stash is kept: a retry with the same client reuses it.
		s.logger.WarnContext(ctx, "account creation failed",
			"client_id", clientID,
			"role", in.Role.String(),
			"error", err,
		)
		return nil, translateIdentityError(err)
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventAccountRegistered),
		UserID:   account.ID,
		ClientID: clientID,
		Email:    account.Email,
		Details:  map[string]string{"role": in.Role.String()},
	})
	s.logger.InfoContext(ctx, "account registered",
		"client_id", clientID,
		"user_id", account.ID.String(),
		"role", in.Role.String(),
	)
	return account, nil
}

// SignIn exchanges credentials for a session and, when the account's email is
// verified, resumes any pending profile provisioning for the client.
func (s *Service) SignIn(ctx context.Context, clientID, email, password string) (*SignInResult, error) {
	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, translateIdentityError(err)
	}

	account := session.Account
	if account == nil {
		account, err = s.identity.CurrentUser(ctx, session.AccessToken)
		if err != nil {
			return nil, translateIdentityError(err)
		}
		session.Account = account
	}

	if s.metrics != nil {
		s.metrics.SignInsTotal.Inc()
	}
	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventSignedIn),
		UserID:   account.ID,
		ClientID: clientID,
		Email:    account.Email,
	})

	message := s.resume(ctx, clientID, account)
	return &SignInResult{Session: session, ProfileMessage: message}, nil
}

// Session resolves the account behind an access token and, when verified,
// resumes any pending provisioning. This is the second resumption trigger:
// a client that verified in another tab picks its profile up here without
// signing in again.
func (s *Service) Session(ctx context.Context, clientID, accessToken string) (*SessionResult, error) {
	account, err := s.identity.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, translateIdentityError(err)
	}
	message := s.resume(ctx, clientID, account)
	return &SessionResult{Account: account, ProfileMessage: message}, nil
}

// resume drives deferred provisioning for a verified account. It probes the
// role-scoped pending keys in order and processes the first submission found.
//
// The stash is cleared only after a successful outcome; a hard failure keeps
// it so the next trigger retries. Returns the user-facing outcome message, or
// "" when there was nothing to do.
func (s *Service) resume(ctx context.Context, clientID string, account *identity.Account) string {
	if !s.isVerified(ctx, clientID, account) {
		return ""
	}

	for _, role := range domain.Roles() {
		sub, err := s.pending.Read(ctx, clientID, role)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				s.logger.WarnContext(ctx, "pending submission unreadable",
					"client_id", clientID,
					"role", role.String(),
					"error", err,
				)
			}
			continue
		}

		outcome, err := s.provisioner.Provision(ctx, account.ID, role, sub.FormData)
		if err != nil && !outcome.Success {
			s.logger.ErrorContext(ctx, "deferred provisioning failed, keeping pending submission",
				"client_id", clientID,
				"user_id", account.ID.String(),
				"role", role.String(),
				"error", err,
			)
			return ""
		}

		if err := s.pending.Clear(ctx, clientID, role); err != nil {
			// A leftover stash re-provisions as already-exists next time.
			s.logger.WarnContext(ctx, "failed to clear pending submission",
				"client_id", clientID,
				"role", role.String(),
				"error", err,
			)
		}
		s.logger.InfoContext(ctx, "deferred provisioning completed",
			"client_id", clientID,
			"user_id", account.ID.String(),
			"role", role.String(),
			"message", outcome.Message,
		)
		return outcome.Message
	}
	return ""
}

// isVerified reports whether deferred provisioning may run. The account's own
// confirmation status is authoritative; the client-scoped verified marker
// covers providers that omit the flag from session payloads.
func (s *Service) isVerified(ctx context.Context, clientID string, account *identity.Account) bool {
	if account.EmailConfirmed {
		return true
	}
	_, ok, err := s.pending.Verified(ctx, clientID)
	if err != nil {
		s.logger.WarnContext(ctx, "verified marker unreadable",
			"client_id", clientID,
			"error", err,
		)
		return false
	}
	return ok
}

// translateIdentityError maps identity client failures onto domain error
// codes, keeping the provider's message text.
func translateIdentityError(err error) error {
	msg := identity.Message(err)
	switch {
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, msg)
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, msg)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditP == nil {
		return
	}
	if err := s.auditP.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
