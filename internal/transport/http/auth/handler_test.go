package auth

//go:generate mockgen -source=handler.go -destination=mocks/auth-mocks.go -package=mocks OnboardingService,VerificationService

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tutorbase/internal/identity"
	"tutorbase/internal/onboarding"
	"tutorbase/internal/platform/middleware"
	"tutorbase/internal/transport/http/auth/mocks"
	"tutorbase/internal/verification"
	dErrors "tutorbase/pkg/domain-errors"
	"tutorbase/pkg/domain"
)

const testSigningKey = "test-signing-key"

type HandlerSuite struct {
	suite.Suite
	ctrl             *gomock.Controller
	onboardingMock   *mocks.MockOnboardingService
	verificationMock *mocks.MockVerificationService
	handler          *Handler
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.onboardingMock = mocks.NewMockOnboardingService(s.ctrl)
	s.verificationMock = mocks.NewMockVerificationService(s.ctrl)
	s.handler = NewHandler(s.onboardingMock, s.verificationMock, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	// ClientID travels through the same middleware in production.
	middleware.ClientID(handler).ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func testAccount() *identity.Account {
	return &identity.Account{
		ID:    domain.UserID(uuid.New()),
		Email: "ada@example.com",
	}
}

func (s *HandlerSuite) TestRegister() {
	account := testAccount()
	s.onboardingMock.EXPECT().
		Register(gomock.Any(), "client-1", gomock.Any()).
		DoAndReturn(func(_ any, _ string, in onboarding.RegisterInput) (*identity.Account, error) {
			assert.Equal(s.T(), domain.RoleTutor, in.Role)
			assert.Equal(s.T(), "Lagos", in.FormData["city"])
			return account, nil
		})

	payload := `{"email":"ada@example.com","password":"s3cret-pass","role":"tutor","formData":{"city":"Lagos"}}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(payload))
	req.Header.Set("X-Client-ID", "client-1")

	rec := s.do(s.handler.Register, req)
	require.Equal(s.T(), http.StatusCreated, rec.Code)

	body := s.decode(rec)
	assert.Equal(s.T(), "Check your email to verify your account", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(s.T(), account.Email, user["email"])
}

func (s *HandlerSuite) TestRegisterValidation() {
	cases := map[string]string{
		"missing email":  `{"password":"s3cret-pass","role":"tutor"}`,
		"short password": `{"email":"ada@example.com","password":"short","role":"tutor"}`,
		"bad role":       `{"email":"ada@example.com","password":"s3cret-pass","role":"institution"}`,
		"not json":       `{`,
	}
	for name, payload := range cases {
		s.T().Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(payload))
			rec := s.do(s.handler.Register, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *HandlerSuite) TestRegisterConflict() {
	s.onboardingMock.EXPECT().
		Register(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "Email address already registered"))

	payload := `{"email":"ada@example.com","password":"s3cret-pass","role":"tutor"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(payload))

	rec := s.do(s.handler.Register, req)
	require.Equal(s.T(), http.StatusConflict, rec.Code)
	body := s.decode(rec)
	assert.Equal(s.T(), "Email address already registered", body["error_description"])
}

func (s *HandlerSuite) TestSignInIncludesProfileMessage() {
	result := &onboarding.SignInResult{
		Session: &identity.Session{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			ExpiresIn:    3600,
			Account:      testAccount(),
		},
		ProfileMessage: "Profile created successfully",
	}
	s.onboardingMock.EXPECT().
		SignIn(gomock.Any(), "client-1", "ada@example.com", "s3cret-pass").
		Return(result, nil)

	payload := `{"email":"ada@example.com","password":"s3cret-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", bytes.NewBufferString(payload))
	req.Header.Set("X-Client-ID", "client-1")

	rec := s.do(s.handler.SignIn, req)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	body := s.decode(rec)
	assert.Equal(s.T(), "at-1", body["access_token"])
	assert.Equal(s.T(), "Profile created successfully", body["profile_message"])
}

func (s *HandlerSuite) TestSignInRejected() {
	s.onboardingMock.EXPECT().
		SignIn(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid login credentials"))

	payload := `{"email":"ada@example.com","password":"wrong-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", bytes.NewBufferString(payload))

	rec := s.do(s.handler.SignIn, req)
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func signedToken(t *testing.T) string {
	t.Helper()
	claims := middleware.SessionClaims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return token
}

func (s *HandlerSuite) sessionChain() http.Handler {
	return middleware.ClientID(middleware.Session(testSigningKey)(http.HandlerFunc(s.handler.Session)))
}

func (s *HandlerSuite) TestSessionRequiresToken() {
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	s.sessionChain().ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestSessionResumesProvisioning() {
	token := signedToken(s.T())
	s.onboardingMock.EXPECT().
		Session(gomock.Any(), "client-1", token).
		Return(&onboarding.SessionResult{
			Account:        testAccount(),
			ProfileMessage: "Your profile is pending admin approval.",
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-ID", "client-1")
	rec := httptest.NewRecorder()
	s.sessionChain().ServeHTTP(rec, req)

	require.Equal(s.T(), http.StatusOK, rec.Code)
	body := s.decode(rec)
	assert.Equal(s.T(), "Your profile is pending admin approval.", body["profile_message"])
}

func (s *HandlerSuite) TestVerifySuccess() {
	s.verificationMock.EXPECT().
		Verify(gomock.Any(), "client-1", gomock.Any()).
		Return(verification.Result{
			State:       verification.StateSuccess,
			Message:     verification.MessageVerified,
			AutoAdvance: 3 * time.Second,
			ContinueURL: "/signin",
			Session:     &identity.Session{AccessToken: "at-1"},
		})

	req := httptest.NewRequest(http.MethodGet, "/auth/verify?token=tok-123", nil)
	req.Header.Set("X-Client-ID", "client-1")

	rec := s.do(s.handler.Verify, req)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	body := s.decode(rec)
	assert.Equal(s.T(), "success", body["state"])
	assert.Equal(s.T(), float64(3000), body["auto_advance_ms"])
	assert.Equal(s.T(), "/signin", body["continue_url"])
	assert.Equal(s.T(), "at-1", body["access_token"])
}

func (s *HandlerSuite) TestVerifyError() {
	s.verificationMock.EXPECT().
		Verify(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(verification.Result{
			State:   verification.StateError,
			Message: verification.MessageInvalidLink,
		})

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	rec := s.do(s.handler.Verify, req)

	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	body := s.decode(rec)
	assert.Equal(s.T(), "error", body["state"])
	assert.Equal(s.T(), "Invalid verification link. Please check your email and try again.", body["message"])
}
