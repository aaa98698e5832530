package service

import (
	"strconv"
	"time"

	"tutorbase/internal/profile/models"
	"tutorbase/pkg/domain"
)

// Form field names match what the registration forms submit. The payload is
// stored verbatim in the pending store, so parsing happens here, at
// provisioning time, and tolerates missing or malformed values: a half-filled
// form still provisions, with zero values standing in.

func baseProfileFromForm(userID domain.UserID, role domain.Role, form map[string]string) *models.Profile {
	return &models.Profile{
		UserID:            userID,
		FullName:          form["fullName"],
		City:              form["city"],
		Area:              form["area"],
		Role:              role,
		PreferredLanguage: form["preferredLanguage"],
		CreatedAt:         time.Now().UTC(),
	}
}

func tutorProfileFromForm(userID domain.UserID, form map[string]string) *models.TutorProfile {
	return &models.TutorProfile{
		UserID:          userID,
		Bio:             form["bio"],
		ExperienceYears: parseInt(form["experienceYears"]),
		HourlyRateMin:   parseFloat(form["hourlyRateMin"]),
		HourlyRateMax:   parseFloat(form["hourlyRateMax"]),
		Qualifications:  form["qualifications"],
		Availability:    form["availability"],
		Verified:        false,
		CreatedAt:       time.Now().UTC(),
	}
}

func studentProfileFromForm(userID domain.UserID, form map[string]string) *models.StudentProfile {
	return &models.StudentProfile{
		UserID:              userID,
		DateOfBirth:         form["dateOfBirth"],
		EducationLevel:      form["educationLevel"],
		InstructionLanguage: form["instructionLanguage"],
		OnboardingCompleted: false,
		SessionsBooked:      0,
		CreatedAt:           time.Now().UTC(),
	}
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
