package pending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

// InMemoryStore keeps pending submissions in memory for tests/dev. Entries
// are stored in their serialized form so the expiry and corrupt-entry paths
// behave exactly like the Redis store's.
type InMemoryStore struct {
	mu       sync.RWMutex
	entries  map[string][]byte
	verified map[string]string
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// MemoryOption configures the InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemoryClock injects a clock for TTL tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// WithMemoryTTL overrides the default 24h submission TTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewMemory constructs an empty in-memory pending-submission store.
func NewMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries:  make(map[string][]byte),
		verified: make(map[string]string),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Save(_ context.Context, clientID string, role domain.Role, formData map[string]string) error {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return err
	}
	raw, err := encodeSubmission(role, formData, s.now())
	if err != nil {
		return fmt.Errorf("encode pending entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = raw
	return nil
}

func (s *InMemoryStore) Read(_ context.Context, clientID string, role domain.Role) (*Submission, error) {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("pending entry absent: %w", sentinel.ErrNotFound)
	}

	sub, err := decodeSubmission(raw)
	if err != nil {
		delete(s.entries, key)
		return nil, err
	}

	if s.now().Sub(sub.CreatedAt) > s.ttl {
		delete(s.entries, key)
		return nil, fmt.Errorf("pending entry expired: %w", sentinel.ErrNotFound)
	}

	return sub, nil
}

func (s *InMemoryStore) Clear(_ context.Context, clientID string, role domain.Role) error {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *InMemoryStore) MarkVerified(_ context.Context, clientID string, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[clientID] = userID.String()
	return nil
}

func (s *InMemoryStore) Verified(_ context.Context, clientID string) (domain.UserID, bool, error) {
	s.mu.RLock()
	raw, ok := s.verified[clientID]
	s.mu.RUnlock()
	if !ok {
		return domain.UserID{}, false, nil
	}

	userID, err := domain.ParseUserID(raw)
	if err != nil {
		return domain.UserID{}, false, nil
	}
	return userID, true, nil
}

// Corrupt injects a malformed entry under the client's role key. Test hook
// for the parse-failure degradation path.
func (s *InMemoryStore) Corrupt(clientID string, role domain.Role, raw []byte) {
	key, err := s.entryKey(clientID, role)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = raw
}

func (s *InMemoryStore) entryKey(clientID string, role domain.Role) (string, error) {
	rk, err := roleKey(role)
	if err != nil {
		return "", err
	}
	return keyPrefix + clientID + ":" + rk, nil
}
