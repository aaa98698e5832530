// Package verification handles the email-verification callback. It turns the
// proof carried by an inbound verification link into a confirmed account and a
// durable verified marker that later sign-ins use to resume provisioning.
//
// The callback itself never provisions profile rows. Provisioning belongs to
// the authenticated triggers that follow; keeping the callback write-light
// means a crash here costs nothing that the next sign-in cannot recover.
package verification

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"tutorbase/internal/audit"
	"tutorbase/internal/identity"
	"tutorbase/internal/pending"
	"tutorbase/internal/platform/config"
	"tutorbase/internal/platform/metrics"
)

// State is the callback's user-visible phase.
type State string

const (
	// StateVerifying is the initial phase while redemption is in flight.
	StateVerifying State = "verifying"
	StateSuccess   State = "success"
	StateError     State = "error"
)

// MessageInvalidLink is shown when the link carries no recognizable proof.
// No remote call is made for such a link.
const MessageInvalidLink = "Invalid verification link. Please check your email and try again."

// MessageVerified is shown on successful redemption.
const MessageVerified = "Email verified successfully"

// confirmMarkerKey is the account-metadata marker recording first successful
// verification. Written at most once per account.
const confirmMarkerKey = "email_verified_at"

// Result is what the callback renders.
type Result struct {
	State       State
	Message     string
	Session     *identity.Session
	AutoAdvance time.Duration
	ContinueURL string
}

// AuditPublisher records verification outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the verification callback handler.
type Service struct {
	identity     identity.Client
	pending      pending.Store
	logger       *slog.Logger
	auditP       AuditPublisher
	metrics      *metrics.Metrics
	advanceDelay time.Duration
	continueURL  string
	now          func() time.Time
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

// WithMetrics enables verification outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs the verification handler.
func New(idClient identity.Client, pendingStore pending.Store, cfg config.Verify, opts ...Option) *Service {
	svc := &Service{
		identity:     idClient,
		pending:      pendingStore,
		advanceDelay: cfg.AdvanceDelay,
		continueURL:  cfg.ContinueURL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Verify drives the callback from the raw link parameters to a terminal
// Success or Error result.
//
// A link carrying no recognizable proof fails locally with
// MessageInvalidLink; nothing is sent to the identity provider for it.
// Redemption failures surface the provider's message verbatim. Repeating a
// verified link is harmless: the provider treats redemption as idempotent and
// the confirm marker is written only once.
func (s *Service) Verify(ctx context.Context, clientID string, query url.Values) Result {
	proof, err := identity.ProofFromQuery(query)
	if err != nil {
		s.logger.WarnContext(ctx, "verification link carries no proof", "client_id", clientID)
		s.countOutcome("invalid_link")
		s.logAudit(ctx, audit.Event{
			Action:   string(audit.EventVerificationFailed),
			ClientID: clientID,
			Details:  map[string]string{"reason": "invalid_link"},
		})
		return Result{State: StateError, Message: MessageInvalidLink}
	}

	session, err := s.identity.RedeemVerification(ctx, proof)
	if err != nil {
		s.logger.WarnContext(ctx, "verification redemption failed",
			"client_id", clientID,
			"proof_kind", string(proof.Kind),
			"error", err,
		)
		s.countOutcome("redeem_failed")
		s.logAudit(ctx, audit.Event{
			Action:   string(audit.EventVerificationFailed),
			ClientID: clientID,
			Details:  map[string]string{"reason": "redeem_failed", "proof_kind": string(proof.Kind)},
		})
		return Result{State: StateError, Message: identity.Message(err)}
	}

	account := session.Account
	if account == nil {
		account, err = s.identity.CurrentUser(ctx, session.AccessToken)
		if err != nil {
			s.logger.ErrorContext(ctx, "verified session has no loadable account",
				"client_id", clientID,
				"error", err,
			)
			s.countOutcome("redeem_failed")
			return Result{State: StateError, Message: identity.Message(err)}
		}
		session.Account = account
	}

	s.writeConfirmMarker(ctx, session.AccessToken, account)

	if err := s.pending.MarkVerified(ctx, clientID, account.ID); err != nil {
		// Verification itself succeeded; a missing marker only delays
		// provisioning until the record store is consulted on sign-in.
		s.logger.ErrorContext(ctx, "failed to persist verified marker",
			"client_id", clientID,
			"user_id", account.ID.String(),
			"error", err,
		)
	}

	s.countOutcome("success")
	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventEmailVerified),
		UserID:   account.ID,
		ClientID: clientID,
		Email:    account.Email,
	})
	s.logger.InfoContext(ctx, "email verified",
		"client_id", clientID,
		"user_id", account.ID.String(),
		"proof_kind", string(proof.Kind),
	)

	return Result{
		State:       StateSuccess,
		Message:     MessageVerified,
		Session:     session,
		AutoAdvance: s.advanceDelay,
		ContinueURL: s.continueURL,
	}
}

// writeConfirmMarker stamps the first-verification marker on the account
// metadata. Best-effort and idempotent: an already-present marker is left
// untouched and a failed write only logs.
func (s *Service) writeConfirmMarker(ctx context.Context, accessToken string, account *identity.Account) {
	if account.Metadata != nil {
		if _, ok := account.Metadata[confirmMarkerKey]; ok {
			return
		}
	}
	patch := map[string]any{confirmMarkerKey: s.now().UTC().Format(time.RFC3339)}
	if err := s.identity.UpdateMetadata(ctx, accessToken, patch); err != nil {
		s.logger.WarnContext(ctx, "failed to write verification marker",
			"user_id", account.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.VerificationOutcomes.WithLabelValues(outcome).Inc()
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
