// Package domain holds the small shared vocabulary of the registration flow:
// typed identifiers and the marketplace roles a signup can carry.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	"tutorbase/internal/sentinel"
)

// UserID identifies an account in the external identity service.
type UserID uuid.UUID

func (u UserID) String() string {
	return uuid.UUID(u).String()
}

// IsZero reports whether the identifier is unset.
func (u UserID) IsZero() bool {
	return uuid.UUID(u) == uuid.Nil
}

// MarshalText renders the identifier in canonical UUID form.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (u *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseUserID parses a string form identifier as received from the identity
// service or a client header.
func ParseUserID(s string) (UserID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("parse user id %q: %w", s, sentinel.ErrInvalidInput)
	}
	return UserID(parsed), nil
}

// Role is the marketplace role a registration provisions a profile for.
// The institution flow runs through a separate wizard and never produces a
// pending submission, so it is not part of this vocabulary.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// Roles lists every role a pending submission may be stored under, in the
// order resumption triggers probe them.
func Roles() []Role {
	return []Role{RoleTutor, RoleStudent}
}

// ParseRole validates a role received over the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleTutor:
		return RoleTutor, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", s, sentinel.ErrInvalidInput)
}

func (r Role) String() string {
	return string(r)
}
