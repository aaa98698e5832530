package models

import (
	"time"

	"tutorbase/pkg/domain"
)

// Profile is the base marketplace profile row, keyed by the identity
// account. It exists for every role.
type Profile struct {
	UserID            domain.UserID
	FullName          string
	City              string
	Area              string
	Role              domain.Role
	PreferredLanguage string
	PhotoURL          string
	CreatedAt         time.Time
}

// TutorProfile is the tutor-specific row. Verified stays false until an
// administrator reviews the qualifications.
type TutorProfile struct {
	UserID          domain.UserID
	Bio             string
	ExperienceYears int
	HourlyRateMin   float64
	HourlyRateMax   float64
	Qualifications  string
	Availability    string
	Verified        bool
	CreatedAt       time.Time
}

// StudentProfile is the student-specific row. Onboarding counters start at
// zero; the dashboard increments them later.
type StudentProfile struct {
	UserID              domain.UserID
	DateOfBirth         string
	EducationLevel      string
	InstructionLanguage string
	OnboardingCompleted bool
	SessionsBooked      int
	CreatedAt           time.Time
}
