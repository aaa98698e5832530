// Package store persists profile rows in the record store. Inserts run under
// the record store's row-level security policies, so a denial is an expected
// outcome here, not an exceptional one; it is reported through
// sentinel.ErrPolicyDenied and classified by the provisioning service.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"tutorbase/internal/profile/models"
	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, full_name, city, area, role, preferred_language, photo_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, uuid.UUID(p.UserID), p.FullName, p.City, p.Area, p.Role.String(), p.PreferredLanguage, p.PhotoURL)
	if err != nil {
		return classifyWriteError("insert profile", err)
	}
	return nil
}

func (s *PostgresStore) InsertTutorProfile(ctx context.Context, p *models.TutorProfile) error {
	if p == nil {
		return fmt.Errorf("tutor profile is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tutor_profiles (user_id, bio, experience_years, hourly_rate_min, hourly_rate_max, qualifications, availability, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, uuid.UUID(p.UserID), p.Bio, p.ExperienceYears, p.HourlyRateMin, p.HourlyRateMax, p.Qualifications, p.Availability, p.Verified)
	if err != nil {
		return classifyWriteError("insert tutor profile", err)
	}
	return nil
}

func (s *PostgresStore) InsertStudentProfile(ctx context.Context, p *models.StudentProfile) error {
	if p == nil {
		return fmt.Errorf("student profile is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO student_profiles (user_id, date_of_birth, education_level, instruction_language, onboarding_completed, sessions_booked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, uuid.UUID(p.UserID), p.DateOfBirth, p.EducationLevel, p.InstructionLanguage, p.OnboardingCompleted, p.SessionsBooked)
	if err != nil {
		return classifyWriteError("insert student profile", err)
	}
	return nil
}

// FindProfile returns the base profile row, mostly for tests and tooling.
func (s *PostgresStore) FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, city, area, role, preferred_language, photo_url, created_at
		FROM profiles WHERE user_id = $1
	`, userID)

	var p models.Profile
	var id uuid.UUID
	var role string
	if err := row.Scan(&id, &p.FullName, &p.City, &p.Area, &role, &p.PreferredLanguage, &p.PhotoURL, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.UserID = domain.UserID(id)
	p.Role = domain.Role(role)
	return &p, nil
}

// classifyWriteError maps SQLSTATE codes onto sentinel errors so the service
// layer classifies outcomes without string matching:
//
//	42501 insufficient_privilege: the row violates an RLS policy
//	23505 unique_violation: the row is already provisioned
func classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501":
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, sentinel.ErrPolicyDenied)
		case "23505":
			return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyExists)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
