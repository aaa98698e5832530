package verification

//go:generate mockgen -source=../identity/client.go -destination=../identity/mocks/mocks.go -package=mocks Client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tutorbase/internal/audit"
	"tutorbase/internal/identity"
	"tutorbase/internal/identity/mocks"
	"tutorbase/internal/pending"
	"tutorbase/internal/platform/config"
	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

type VerificationSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	client    *mocks.MockClient
	store     *pending.InMemoryStore
	auditSink *audit.InMemorySink
	service   *Service
	userID    domain.UserID
}

func (s *VerificationSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.client = mocks.NewMockClient(s.ctrl)
	s.store = pending.NewMemory()
	s.auditSink = audit.NewInMemorySink()
	s.userID = domain.UserID(uuid.New())
	s.service = New(s.client, s.store,
		config.Verify{AdvanceDelay: 3 * time.Second, ContinueURL: "/signin"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(audit.NewPublisher(s.auditSink)),
	)
}

func (s *VerificationSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationSuite))
}

func (s *VerificationSuite) account() *identity.Account {
	return &identity.Account{
		ID:             s.userID,
		Email:          "ada@example.com",
		EmailConfirmed: true,
	}
}

// A link without any recognized proof shape fails locally. The mock client
// has no expectations, so any remote call would fail the test.
func (s *VerificationSuite) TestLinkWithoutProofFailsWithoutRemoteCalls() {
	result := s.service.Verify(context.Background(), "client-1", url.Values{"type": {"email"}})

	assert.Equal(s.T(), StateError, result.State)
	assert.Equal(s.T(), "Invalid verification link. Please check your email and try again.", result.Message)
	assert.Contains(s.T(), s.auditSink.Actions(), string(audit.EventVerificationFailed))
}

func (s *VerificationSuite) TestTokenProofRedeemsAndMarksVerified() {
	session := &identity.Session{AccessToken: "at-1", RefreshToken: "rt-1", Account: s.account()}

	s.client.EXPECT().
		RedeemVerification(gomock.Any(), identity.VerificationProof{Kind: identity.ProofToken, Token: "tok-123", Type: "signup"}).
		Return(session, nil)
	s.client.EXPECT().
		UpdateMetadata(gomock.Any(), "at-1", gomock.Any()).
		Return(nil)

	result := s.service.Verify(context.Background(), "client-1", url.Values{
		"token": {"tok-123"},
		"type":  {"signup"},
	})

	assert.Equal(s.T(), StateSuccess, result.State)
	assert.Equal(s.T(), MessageVerified, result.Message)
	assert.Equal(s.T(), 3*time.Second, result.AutoAdvance)
	assert.Equal(s.T(), "/signin", result.ContinueURL)
	require.NotNil(s.T(), result.Session)

	gotID, ok, err := s.store.Verified(context.Background(), "client-1")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), s.userID, gotID)
	assert.Contains(s.T(), s.auditSink.Actions(), string(audit.EventEmailVerified))
}

func (s *VerificationSuite) TestTokenPairProofTakesPrecedence() {
	session := &identity.Session{AccessToken: "at-1", RefreshToken: "rt-1", Account: s.account()}

	s.client.EXPECT().
		RedeemVerification(gomock.Any(), identity.VerificationProof{
			Kind:         identity.ProofTokenPair,
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
		}).
		Return(session, nil)
	s.client.EXPECT().UpdateMetadata(gomock.Any(), "at-1", gomock.Any()).Return(nil)

	result := s.service.Verify(context.Background(), "client-1", url.Values{
		"access_token":  {"at-1"},
		"refresh_token": {"rt-1"},
		"token":         {"tok-ignored"},
	})

	assert.Equal(s.T(), StateSuccess, result.State)
}

func (s *VerificationSuite) TestRedemptionFailureSurfacesProviderMessage() {
	s.client.EXPECT().
		RedeemVerification(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("Token has expired or is invalid: %w", sentinel.ErrExpired))

	result := s.service.Verify(context.Background(), "client-1", url.Values{"token_hash": {"abc"}})

	assert.Equal(s.T(), StateError, result.State)
	assert.Equal(s.T(), "Token has expired or is invalid", result.Message)

	_, ok, err := s.store.Verified(context.Background(), "client-1")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok, "failed redemption must not leave a verified marker")
}

// Revisiting an already-redeemed link must not rewrite the confirm marker.
func (s *VerificationSuite) TestConfirmMarkerWrittenOnlyOnce() {
	account := s.account()
	account.Metadata = map[string]any{"email_verified_at": "2026-03-10T12:00:00Z"}
	session := &identity.Session{AccessToken: "at-1", Account: account}

	s.client.EXPECT().
		RedeemVerification(gomock.Any(), gomock.Any()).
		Return(session, nil)
	// No UpdateMetadata expectation: a second write would fail the test.

	result := s.service.Verify(context.Background(), "client-1", url.Values{"token": {"tok-123"}})
	assert.Equal(s.T(), StateSuccess, result.State)
}

func (s *VerificationSuite) TestConfirmMarkerFailureDoesNotFailVerification() {
	session := &identity.Session{AccessToken: "at-1", Account: s.account()}

	s.client.EXPECT().RedeemVerification(gomock.Any(), gomock.Any()).Return(session, nil)
	s.client.EXPECT().
		UpdateMetadata(gomock.Any(), "at-1", gomock.Any()).
		Return(fmt.Errorf("identity service unreachable: %w", sentinel.ErrUnavailable))

	result := s.service.Verify(context.Background(), "client-1", url.Values{"token": {"tok-123"}})
	assert.Equal(s.T(), StateSuccess, result.State)
}

// A session payload without an embedded account is resolved via CurrentUser
// before the marker writes.
func (s *VerificationSuite) TestAccountLoadedWhenSessionOmitsIt() {
	session := &identity.Session{AccessToken: "at-1"}

	s.client.EXPECT().RedeemVerification(gomock.Any(), gomock.Any()).Return(session, nil)
	s.client.EXPECT().CurrentUser(gomock.Any(), "at-1").Return(s.account(), nil)
	s.client.EXPECT().UpdateMetadata(gomock.Any(), "at-1", gomock.Any()).Return(nil)

	result := s.service.Verify(context.Background(), "client-1", url.Values{"token": {"tok-123"}})
	require.Equal(s.T(), StateSuccess, result.State)
	require.NotNil(s.T(), result.Session.Account)
	assert.Equal(s.T(), s.userID, result.Session.Account.ID)
}
