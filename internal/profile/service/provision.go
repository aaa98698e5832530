package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"tutorbase/internal/audit"
	"tutorbase/internal/sentinel"
	dErrors "tutorbase/pkg/domain-errors"
	"tutorbase/pkg/domain"
)

// Outcome is the user-facing result of one provision call.
type Outcome struct {
	Success bool
	Message string
}

// User-facing outcome messages. The partial and deferred variants are
// deliberate successes: the identity account is already committed, so a
// permissions timing issue on the profile rows must never read as a failed
// registration.
const (
	MessageCreated  = "Profile created successfully"
	MessagePartial  = "Your profile was partially created. Some features may be limited until an administrator approves it."
	MessageDeferred = "Your profile is pending admin approval."
)

const avatarBucket = "avatars"

// insertClass is the three-way classification of a single insert attempt.
type insertClass int

const (
	classCreated insertClass = iota
	classPolicyRejected
	classHardFailure
)

// classifyInsert folds an insert error into the outcome taxonomy. A
// duplicate row means a racing trigger already provisioned it; that is a
// success for the caller, not a conflict to surface.
func classifyInsert(err error) insertClass {
	switch {
	case err == nil:
		return classCreated
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return classCreated
	case errors.Is(err, sentinel.ErrPolicyDenied):
		return classPolicyRejected
	default:
		return classHardFailure
	}
}

// Provision performs the two-step profile write sequence for a verified
// user and classifies the aggregate outcome.
//
// The two inserts are sequential but independent: the role row is attempted
// even when the base row was rejected or hard-failed, because the rows are
// governed by separate policies and the caller needs both classifications.
// Nothing here is transactional: a policy rejection on one row must not
// roll back the other.
//
// Callers clear the pending submission if and only if Outcome.Success is
// true; a hard failure keeps the entry so a later trigger can retry.
func (s *Service) Provision(ctx context.Context, userID domain.UserID, role domain.Role, formData map[string]string) (Outcome, error) {
	if userID.IsZero() {
		return Outcome{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	base := baseProfileFromForm(userID, role, formData)
	baseErr := s.records.InsertProfile(ctx, base)
	baseClass := classifyInsert(baseErr)
	if baseClass == classHardFailure {
		s.logger.ErrorContext(ctx, "base profile insert failed",
			"user_id", userID.String(),
			"role", role.String(),
			"error", baseErr,
		)
	}

	var roleErr error
	switch role {
	case domain.RoleTutor:
		roleErr = s.records.InsertTutorProfile(ctx, tutorProfileFromForm(userID, formData))
	case domain.RoleStudent:
		roleErr = s.records.InsertStudentProfile(ctx, studentProfileFromForm(userID, formData))
	default:
		return Outcome{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown role %q", role))
	}
	roleClass := classifyInsert(roleErr)
	if roleClass == classHardFailure {
		s.logger.ErrorContext(ctx, "role profile insert failed",
			"user_id", userID.String(),
			"role", role.String(),
			"error", roleErr,
		)
	}

	outcome, err := s.aggregate(ctx, userID, role, baseClass, roleClass, baseErr, roleErr)
	if outcome.Success {
		s.uploadPhoto(ctx, userID, formData)
	}
	return outcome, err
}

func (s *Service) aggregate(ctx context.Context, userID domain.UserID, role domain.Role, baseClass, roleClass insertClass, baseErr, roleErr error) (Outcome, error) {
	if baseClass == classHardFailure || roleClass == classHardFailure {
		s.countOutcome("failed")
		s.logAudit(ctx, audit.Event{
			Action: string(audit.EventProvisioningFailed),
			UserID: userID,
			Details: map[string]string{
				"role": role.String(),
			},
		})
		hardErr := baseErr
		if baseClass != classHardFailure {
			hardErr = roleErr
		}
		return Outcome{Success: false}, dErrors.Wrap(hardErr, dErrors.CodeInternal, "profile could not be created")
	}

	switch {
	case baseClass == classCreated && roleClass == classCreated:
		s.countOutcome("created")
		s.logAudit(ctx, audit.Event{
			Action:  string(audit.EventProfileProvisioned),
			UserID:  userID,
			Details: map[string]string{"role": role.String()},
		})
		return Outcome{Success: true, Message: MessageCreated}, nil

	case baseClass == classPolicyRejected && roleClass == classPolicyRejected:
		s.countOutcome("deferred")
		s.logAudit(ctx, audit.Event{
			Action:  string(audit.EventProfileDeferred),
			UserID:  userID,
			Details: map[string]string{"role": role.String()},
		})
		return Outcome{Success: true, Message: MessageDeferred}, nil

	default:
		s.countOutcome("partial")
		s.logAudit(ctx, audit.Event{
			Action: string(audit.EventProfilePartial),
			UserID: userID,
			Details: map[string]string{
				"role":         role.String(),
				"base_created": fmt.Sprintf("%t", baseClass == classCreated),
				"role_created": fmt.Sprintf("%t", roleClass == classCreated),
			},
		})
		return Outcome{Success: true, Message: MessagePartial}, nil
	}
}

// uploadPhoto pushes the submitted photo to the asset bucket. Best-effort:
// losing a profile photo is not a provisioning failure, so every error path
// here only logs.
func (s *Service) uploadPhoto(ctx context.Context, userID domain.UserID, formData map[string]string) {
	if s.assets == nil {
		return
	}
	encoded := formData["photo"]
	if encoded == "" {
		return
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.logger.WarnContext(ctx, "profile photo not decodable, skipping upload",
			"user_id", userID.String(),
			"error", err,
		)
		return
	}

	url, err := s.assets.Upload(ctx, avatarBucket, userID.String()+".jpg", data, "image/jpeg")
	if err != nil {
		s.logger.WarnContext(ctx, "profile photo upload failed",
			"user_id", userID.String(),
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "profile photo uploaded",
		"user_id", userID.String(),
		"url", url,
	)
}
