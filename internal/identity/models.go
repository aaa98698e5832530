package identity

import (
	"fmt"
	"net/url"

	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

// Account is the identity provider's view of a user. The registration flow
// treats it as read-only truth for "may this user have a profile provisioned".
type Account struct {
	ID             domain.UserID
	Email          string
	EmailConfirmed bool
	Metadata       map[string]any
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Account      *Account
}

// ProofKind names the recognized verification proof shapes carried by an
// inbound verification link.
type ProofKind string

const (
	ProofTokenPair ProofKind = "token_pair"
	ProofToken     ProofKind = "token"
	ProofTokenHash ProofKind = "token_hash"
)

// VerificationProof carries whichever proof shape the verification link held.
// Exactly one shape must be populated for redemption to proceed.
type VerificationProof struct {
	Kind         ProofKind
	AccessToken  string
	RefreshToken string
	Token        string
	TokenHash    string
	Type         string
}

// ProofFromQuery extracts a verification proof from callback query
// parameters. Shapes are probed in precedence order: a full token pair, then
// a one-time token, then a token hash. A link carrying none of them is
// unusable and the caller must not make any remote call for it.
func ProofFromQuery(q url.Values) (VerificationProof, error) {
	proofType := q.Get("type")

	if access, refresh := q.Get("access_token"), q.Get("refresh_token"); access != "" && refresh != "" {
		return VerificationProof{
			Kind:         ProofTokenPair,
			AccessToken:  access,
			RefreshToken: refresh,
			Type:         proofType,
		}, nil
	}

	if token := q.Get("token"); token != "" {
		return VerificationProof{
			Kind:  ProofToken,
			Token: token,
			Type:  proofType,
		}, nil
	}

	if hash := q.Get("token_hash"); hash != "" {
		return VerificationProof{
			Kind:      ProofTokenHash,
			TokenHash: hash,
			Type:      proofType,
		}, nil
	}

	return VerificationProof{}, fmt.Errorf("no verification proof in link: %w", sentinel.ErrInvalidInput)
}
