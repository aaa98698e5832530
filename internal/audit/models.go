package audit

import (
	"time"

	"tutorbase/pkg/domain"
)

// Event is emitted from domain logic to capture key actions in the
// registration pipeline. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	UserID    domain.UserID     `json:"user_id,omitempty"`
	ClientID  string            `json:"client_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type AuditEvent string

const (
	EventAccountRegistered    AuditEvent = "account_registered"
	EventEmailVerified        AuditEvent = "email_verified"
	EventVerificationFailed   AuditEvent = "verification_failed"
	EventSignedIn             AuditEvent = "signed_in"
	EventProfileProvisioned   AuditEvent = "profile_provisioned"
	EventProfilePartial       AuditEvent = "profile_partially_provisioned"
	EventProfileDeferred      AuditEvent = "profile_provisioning_deferred"
	EventProvisioningFailed   AuditEvent = "provisioning_failed"
	EventPendingSubmissionSet AuditEvent = "pending_submission_stored"
)
