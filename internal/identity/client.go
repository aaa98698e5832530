// Package identity is the thin façade over the external identity provider.
// Account creation, credential sign-in, and verification-token redemption are
// consumed here, never implemented; the provider remains the source of truth
// for authentication state.
package identity

import "context"

// Client is the identity service façade consumed by the registration flow.
// Error Contract: implementations wrap sentinel errors (ErrInvalidInput,
// ErrExpired, ErrAlreadyExists, ErrUnavailable) and keep the provider's
// human-readable message as the error text, because verification failures are
// surfaced to users verbatim.
type Client interface {
	// CreateAccount registers a new identity with the given credentials and
	// profile metadata. The account starts unverified.
	CreateAccount(ctx context.Context, email, password string, metadata map[string]any) (*Account, error)

	// SignIn exchanges credentials for a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// CurrentUser fetches the account behind an access token.
	CurrentUser(ctx context.Context, accessToken string) (*Account, error)

	// RedeemVerification exchanges a verification proof for a session.
	// Redemption is idempotent on the provider side when the account is
	// already confirmed.
	RedeemVerification(ctx context.Context, proof VerificationProof) (*Session, error)

	// UpdateMetadata patches the account metadata of the session owner.
	UpdateMetadata(ctx context.Context, accessToken string, patch map[string]any) error
}
