package store

import (
	"context"
	"fmt"
	"sync"

	"tutorbase/internal/profile/models"
	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrAlreadyExists for duplicate inserts
// - Return sentinel.ErrPolicyDenied when an injected policy denies the row
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore stores profile rows in memory for tests/dev. DenyPolicy lets
// tests stand in for the record store's row-level security.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]*models.Profile
	tutors   map[domain.UserID]*models.TutorProfile
	students map[domain.UserID]*models.StudentProfile

	// DenyPolicy, when set, is consulted before every insert; returning true
	// rejects the row the way an RLS policy would.
	DenyPolicy func(table string) bool
}

// NewMemory constructs an empty in-memory profile store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[domain.UserID]*models.Profile),
		tutors:   make(map[domain.UserID]*models.TutorProfile),
		students: make(map[domain.UserID]*models.StudentProfile),
	}
}

func (s *InMemoryStore) InsertProfile(_ context.Context, p *models.Profile) error {
	if s.denied("profiles") {
		return fmt.Errorf("insert profile: %w", sentinel.ErrPolicyDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UserID]; ok {
		return fmt.Errorf("insert profile: %w", sentinel.ErrAlreadyExists)
	}
	s.profiles[p.UserID] = p
	return nil
}

func (s *InMemoryStore) InsertTutorProfile(_ context.Context, p *models.TutorProfile) error {
	if s.denied("tutor_profiles") {
		return fmt.Errorf("insert tutor profile: %w", sentinel.ErrPolicyDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tutors[p.UserID]; ok {
		return fmt.Errorf("insert tutor profile: %w", sentinel.ErrAlreadyExists)
	}
	s.tutors[p.UserID] = p
	return nil
}

func (s *InMemoryStore) InsertStudentProfile(_ context.Context, p *models.StudentProfile) error {
	if s.denied("student_profiles") {
		return fmt.Errorf("insert student profile: %w", sentinel.ErrPolicyDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[p.UserID]; ok {
		return fmt.Errorf("insert student profile: %w", sentinel.ErrAlreadyExists)
	}
	s.students[p.UserID] = p
	return nil
}

// Profile returns the stored base profile, if any.
func (s *InMemoryStore) Profile(userID domain.UserID) (*models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// TutorProfile returns the stored tutor row, if any.
func (s *InMemoryStore) TutorProfile(userID domain.UserID) (*models.TutorProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.tutors[userID]
	return p, ok
}

// StudentProfile returns the stored student row, if any.
func (s *InMemoryStore) StudentProfile(userID domain.UserID) (*models.StudentProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.students[userID]
	return p, ok
}

func (s *InMemoryStore) denied(table string) bool {
	s.mu.RLock()
	deny := s.DenyPolicy
	s.mu.RUnlock()
	return deny != nil && deny(table)
}
