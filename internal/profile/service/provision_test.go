package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tutorbase/internal/audit"
	"tutorbase/internal/profile/models"
	"tutorbase/internal/sentinel"
	dErrors "tutorbase/pkg/domain-errors"
	"tutorbase/pkg/domain"
)

// scriptedStore returns a scripted error per table and records call order.
type scriptedStore struct {
	mu         sync.Mutex
	baseErr    error
	tutorErr   error
	studentErr error
	calls      []string
}

func (s *scriptedStore) record(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, table)
}

func (s *scriptedStore) InsertProfile(_ context.Context, _ *models.Profile) error {
	s.record("profiles")
	return s.baseErr
}

func (s *scriptedStore) InsertTutorProfile(_ context.Context, _ *models.TutorProfile) error {
	s.record("tutor_profiles")
	return s.tutorErr
}

func (s *scriptedStore) InsertStudentProfile(_ context.Context, _ *models.StudentProfile) error {
	s.record("student_profiles")
	return s.studentErr
}

type capturingUploader struct {
	mu      sync.Mutex
	bucket  string
	key     string
	data    []byte
	err     error
	uploads int
}

func (u *capturingUploader) Upload(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads++
	u.bucket = bucket
	u.key = key
	u.data = data
	if u.err != nil {
		return "", u.err
	}
	return "https://assets.example.com/" + bucket + "/" + key, nil
}

type ProvisionSuite struct {
	suite.Suite
	store     *scriptedStore
	auditSink *audit.InMemorySink
	userID    domain.UserID
}

func (s *ProvisionSuite) SetupTest() {
	s.store = &scriptedStore{}
	s.auditSink = audit.NewInMemorySink()
	s.userID = domain.UserID(uuid.New())
}

func TestProvisionSuite(t *testing.T) {
	suite.Run(t, new(ProvisionSuite))
}

func (s *ProvisionSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(audit.NewPublisher(s.auditSink)),
	}
	svc, err := New(s.store, append(base, opts...)...)
	require.NoError(s.T(), err)
	return svc
}

func (s *ProvisionSuite) TestBothInsertsSucceed() {
	svc := s.newService()

	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{"fullName": "Ada"})
	require.NoError(s.T(), err)
	assert.True(s.T(), outcome.Success)
	assert.Equal(s.T(), "Profile created successfully", outcome.Message)
	assert.Equal(s.T(), []string{"profiles", "tutor_profiles"}, s.store.calls)
	assert.Contains(s.T(), s.auditSink.Actions(), string(audit.EventProfileProvisioned))
}

func (s *ProvisionSuite) TestBothInsertsPolicyRejected() {
	s.store.baseErr = fmt.Errorf("insert profile: %w", sentinel.ErrPolicyDenied)
	s.store.studentErr = fmt.Errorf("insert student profile: %w", sentinel.ErrPolicyDenied)
	svc := s.newService()

	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleStudent, map[string]string{})
	require.NoError(s.T(), err)
	assert.True(s.T(), outcome.Success, "a policy rejection is a deferral, not a failure")
	assert.Equal(s.T(), MessageDeferred, outcome.Message)
	assert.Contains(s.T(), s.auditSink.Actions(), string(audit.EventProfileDeferred))
}

func (s *ProvisionSuite) TestFirstInsertHardFailureStillAttemptsSecond() {
	s.store.baseErr = errors.New("connection reset by peer")
	svc := s.newService()

	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{})
	require.Error(s.T(), err)
	assert.False(s.T(), outcome.Success)
	assert.Len(s.T(), s.store.calls, 2, "the role insert runs even when the base insert hard-fails")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Contains(s.T(), s.auditSink.Actions(), string(audit.EventProvisioningFailed))
}

func (s *ProvisionSuite) TestRoleInsertHardFailure() {
	s.store.tutorErr = errors.New("connection reset by peer")
	svc := s.newService()

	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{})
	require.Error(s.T(), err)
	assert.False(s.T(), outcome.Success)
}

func (s *ProvisionSuite) TestDuplicateRowsCountAsCreated() {
	s.store.baseErr = fmt.Errorf("insert profile: %w", sentinel.ErrAlreadyExists)
	s.store.tutorErr = fmt.Errorf("insert tutor profile: %w", sentinel.ErrAlreadyExists)
	svc := s.newService()

	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{})
	require.NoError(s.T(), err)
	assert.True(s.T(), outcome.Success, "re-running provisioning must be idempotent")
	assert.Equal(s.T(), MessageCreated, outcome.Message)
}

func (s *ProvisionSuite) TestMixedOutcomeIsPartialEitherWay() {
	s.T().Run("base created, role rejected", func(t *testing.T) {
		s.SetupTest()
		s.store.tutorErr = fmt.Errorf("insert tutor profile: %w", sentinel.ErrPolicyDenied)
		svc := s.newService()

		outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{})
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, MessagePartial, outcome.Message)
	})

	s.T().Run("base rejected, role created", func(t *testing.T) {
		s.SetupTest()
		s.store.baseErr = fmt.Errorf("insert profile: %w", sentinel.ErrPolicyDenied)
		svc := s.newService()

		outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{})
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, MessagePartial, outcome.Message)
	})
}

func (s *ProvisionSuite) TestZeroUserIDRejected() {
	svc := s.newService()
	_, err := svc.Provision(context.Background(), domain.UserID{}, domain.RoleTutor, map[string]string{})
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Empty(s.T(), s.store.calls)
}

func (s *ProvisionSuite) TestUnknownRoleRejectedAfterBaseInsert() {
	svc := s.newService()
	_, err := svc.Provision(context.Background(), s.userID, domain.Role("institution"), map[string]string{})
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ProvisionSuite) TestPhotoUploadedOnSuccess() {
	uploader := &capturingUploader{}
	svc := s.newService(WithAssetUploader(uploader))

	photo := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{"photo": photo})
	require.NoError(s.T(), err)
	require.True(s.T(), outcome.Success)

	assert.Equal(s.T(), 1, uploader.uploads)
	assert.Equal(s.T(), "avatars", uploader.bucket)
	assert.Equal(s.T(), s.userID.String()+".jpg", uploader.key)
	assert.Equal(s.T(), []byte("jpeg-bytes"), uploader.data)
}

func (s *ProvisionSuite) TestPhotoUploadFailureDoesNotFailProvisioning() {
	uploader := &capturingUploader{err: errors.New("bucket unreachable")}
	svc := s.newService(WithAssetUploader(uploader))

	photo := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	outcome, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{"photo": photo})
	require.NoError(s.T(), err)
	assert.True(s.T(), outcome.Success)
}

func (s *ProvisionSuite) TestNoUploadOnHardFailure() {
	uploader := &capturingUploader{}
	s.store.baseErr = errors.New("connection reset by peer")
	svc := s.newService(WithAssetUploader(uploader))

	photo := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	_, err := svc.Provision(context.Background(), s.userID, domain.RoleTutor, map[string]string{"photo": photo})
	require.Error(s.T(), err)
	assert.Zero(s.T(), uploader.uploads)
}
