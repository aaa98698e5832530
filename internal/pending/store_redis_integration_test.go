//go:build integration

package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
	"tutorbase/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	client *goredis.Client
	now    time.Time
	store  *RedisStore
}

func (s *RedisStoreSuite) SetupSuite() {
	rc := containers.GetManager().GetRedis(s.T())
	s.client = rc.NewClient(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	require.NoError(s.T(), s.client.FlushAll(context.Background()).Err())
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.store = NewRedis(s.client, WithClock(func() time.Time { return s.now }))
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) TestSaveReadClearRoundTrip() {
	ctx := context.Background()
	form := map[string]string{"fullName": "Ada Okonkwo", "city": "Lagos"}

	require.NoError(s.T(), s.store.Save(ctx, "client-1", domain.RoleTutor, form))

	sub, err := s.store.Read(ctx, "client-1", domain.RoleTutor)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), form, sub.FormData)

	require.NoError(s.T(), s.store.Clear(ctx, "client-1", domain.RoleTutor))
	_, err = s.store.Read(ctx, "client-1", domain.RoleTutor)
	assert.True(s.T(), errors.Is(err, sentinel.ErrNotFound))
}

func (s *RedisStoreSuite) TestKeyLayout() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Save(ctx, "client-1", domain.RoleTutor, map[string]string{}))
	require.NoError(s.T(), s.store.Save(ctx, "client-1", domain.RoleStudent, map[string]string{}))

	exists, err := s.client.Exists(ctx,
		"pending:client-1:pendingTutorProfile",
		"pending:client-1:pendingStudentProfile",
	).Result()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), exists)
}

// The Redis key TTL is a backstop; the lazy check on read is authoritative.
func (s *RedisStoreSuite) TestKeyCarriesTTLBackstop() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Save(ctx, "client-1", domain.RoleTutor, map[string]string{}))

	ttl, err := s.client.TTL(ctx, "pending:client-1:pendingTutorProfile").Result()
	require.NoError(s.T(), err)
	assert.Greater(s.T(), ttl, 23*time.Hour)
	assert.LessOrEqual(s.T(), ttl, 24*time.Hour)
}

func (s *RedisStoreSuite) TestLazyExpiryRemovesEntry() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Save(ctx, "client-1", domain.RoleStudent, map[string]string{}))

	s.now = s.now.Add(24*time.Hour + time.Minute)

	_, err := s.store.Read(ctx, "client-1", domain.RoleStudent)
	assert.True(s.T(), errors.Is(err, sentinel.ErrNotFound))

	exists, err := s.client.Exists(ctx, "pending:client-1:pendingStudentProfile").Result()
	require.NoError(s.T(), err)
	assert.Zero(s.T(), exists, "an expired entry is deleted on read")
}

func (s *RedisStoreSuite) TestCorruptEntryReadsAsAbsentAndIsRemoved() {
	ctx := context.Background()
	require.NoError(s.T(), s.client.Set(ctx, "pending:client-1:pendingTutorProfile", "{not json", 0).Err())

	_, err := s.store.Read(ctx, "client-1", domain.RoleTutor)
	assert.True(s.T(), errors.Is(err, sentinel.ErrNotFound))

	exists, err := s.client.Exists(ctx, "pending:client-1:pendingTutorProfile").Result()
	require.NoError(s.T(), err)
	assert.Zero(s.T(), exists)
}

func (s *RedisStoreSuite) TestVerifiedMarkerRoundTrip() {
	ctx := context.Background()
	userID := domain.UserID(uuid.New())

	_, ok, err := s.store.Verified(ctx, "client-1")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)

	require.NoError(s.T(), s.store.MarkVerified(ctx, "client-1", userID))

	got, ok, err := s.store.Verified(ctx, "client-1")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), userID, got)

	flag, err := s.client.Get(ctx, "pending:client-1:profileVerified").Result()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "true", flag)
	stored, err := s.client.Get(ctx, "pending:client-1:verifiedUserId").Result()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), userID.String(), stored)
}
