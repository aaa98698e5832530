// Package pending implements the pending-submission store: a client-scoped,
// TTL-bounded stash for registration form payloads that are waiting for the
// owner to verify their email address. Entries live outside the record store
// on purpose; nothing here is trusted for authorization.
package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

// DefaultTTL bounds how long a submission may wait for verification. An
// entry older than this is treated as expired and removed on next read.
const DefaultTTL = 24 * time.Hour

// Submission is a role-tagged registration form payload awaiting
// verification. FormData is captured verbatim from the form; the store never
// interprets it.
type Submission struct {
	Role      domain.Role
	FormData  map[string]string
	CreatedAt time.Time
}

// Store is the pending-submission persistence contract.
//
// Error Contract: Read returns sentinel.ErrNotFound for every flavor of
// "absent" (missing, expired, or unparseable) so callers never branch on
// storage internals. Save and Clear are best-effort from the flow's point of
// view: callers log failures and move on.
type Store interface {
	// Save stashes a submission under the client's role-scoped key,
	// overwriting any previous entry for that role.
	Save(ctx context.Context, clientID string, role domain.Role, formData map[string]string) error

	// Read returns the stashed submission for the role, removing and
	// reporting absent any entry past the TTL or failing to parse.
	Read(ctx context.Context, clientID string, role domain.Role) (*Submission, error)

	// Clear removes the entry. Idempotent; clearing an absent entry is not
	// an error.
	Clear(ctx context.Context, clientID string, role domain.Role) error

	// MarkVerified durably records that the client's email verification
	// succeeded, together with the verified account id.
	MarkVerified(ctx context.Context, clientID string, userID domain.UserID) error

	// Verified reports whether a verification marker exists for the client
	// and, if so, which account it belongs to.
	Verified(ctx context.Context, clientID string) (domain.UserID, bool, error)
}

// Role-scoped storage key names. These are part of the persisted contract:
// at most one pending submission per role can exist per client.
const (
	keyTutorProfile   = "pendingTutorProfile"
	keyStudentProfile = "pendingStudentProfile"
	keyVerifiedFlag   = "profileVerified"
	keyVerifiedUser   = "verifiedUserId"
)

func roleKey(role domain.Role) (string, error) {
	switch role {
	case domain.RoleTutor:
		return keyTutorProfile, nil
	case domain.RoleStudent:
		return keyStudentProfile, nil
	}
	return "", fmt.Errorf("no pending key for role %q: %w", role, sentinel.ErrInvalidInput)
}

// envelope is the serialized form of a Submission. CreatedAt travels as Unix
// nanoseconds so TTL math never depends on wall-clock formatting.
type envelope struct {
	Role      string            `json:"role"`
	FormData  map[string]string `json:"form_data"`
	CreatedAt int64             `json:"created_at"`
}

func encodeSubmission(role domain.Role, formData map[string]string, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Role:      role.String(),
		FormData:  formData,
		CreatedAt: now.UnixNano(),
	})
}

// decodeSubmission parses an envelope. Any malformed payload degrades to
// ErrNotFound; a corrupt stash is indistinguishable from an absent one.
func decodeSubmission(raw []byte) (*Submission, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("corrupt pending entry: %w", sentinel.ErrNotFound)
	}
	role, err := domain.ParseRole(env.Role)
	if err != nil {
		return nil, fmt.Errorf("corrupt pending entry role: %w", sentinel.ErrNotFound)
	}
	return &Submission{
		Role:      role,
		FormData:  env.FormData,
		CreatedAt: time.Unix(0, env.CreatedAt),
	}, nil
}
