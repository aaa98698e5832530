package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tutorbase/internal/platform/config"
	"tutorbase/internal/sentinel"
	"tutorbase/pkg/domain"
)

// HTTPClient implements Client by calling the external identity provider's
// HTTP API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// HTTPClientOption configures the HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// NewHTTPClient creates a new HTTP-based identity client.
func NewHTTPClient(cfg config.Identity, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// accountPayload is the provider's wire form of an account.
type accountPayload struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	EmailConfirmed bool           `json:"email_confirmed"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// sessionPayload is the provider's wire form of a session.
type sessionPayload struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int             `json:"expires_in"`
	User         *accountPayload `json:"user"`
}

// errorPayload is the provider's error envelope. The message travels verbatim
// to users on verification failures, so it is never rewritten here.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) CreateAccount(ctx context.Context, email, password string, metadata map[string]any) (*Account, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"metadata": metadata,
	}
	var payload accountPayload
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &payload); err != nil {
		return nil, err
	}
	return accountFromPayload(&payload)
}

func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &payload); err != nil {
		return nil, err
	}
	return sessionFromPayload(&payload)
}

func (c *HTTPClient) CurrentUser(ctx context.Context, accessToken string) (*Account, error) {
	var payload accountPayload
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &payload); err != nil {
		return nil, err
	}
	return accountFromPayload(&payload)
}

func (c *HTTPClient) RedeemVerification(ctx context.Context, proof VerificationProof) (*Session, error) {
	switch proof.Kind {
	case ProofTokenPair:
		// The link already carries a session; validating the access token
		// against the provider both establishes it and confirms it is live.
		account, err := c.CurrentUser(ctx, proof.AccessToken)
		if err != nil {
			return nil, err
		}
		return &Session{
			AccessToken:  proof.AccessToken,
			RefreshToken: proof.RefreshToken,
			Account:      account,
		}, nil

	case ProofToken, ProofTokenHash:
		proofType := proof.Type
		if proofType == "" {
			proofType = "email"
		}
		body := map[string]any{"type": proofType}
		if proof.Kind == ProofToken {
			body["token"] = proof.Token
		} else {
			body["token_hash"] = proof.TokenHash
		}
		var payload sessionPayload
		if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", "", body, &payload); err != nil {
			return nil, err
		}
		return sessionFromPayload(&payload)
	}

	return nil, fmt.Errorf("unrecognized verification proof: %w", sentinel.ErrInvalidInput)
}

func (c *HTTPClient) UpdateMetadata(ctx context.Context, accessToken string, patch map[string]any) error {
	body := map[string]any{"metadata": patch}
	return c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, body, nil)
}

// do executes one provider round-trip, mapping HTTP failures to sentinel
// errors while preserving the provider's message text.
func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("identity service timeout: %w", sentinel.ErrUnavailable)
		}
		return fmt.Errorf("identity service unreachable: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

func (c *HTTPClient) mapError(resp *http.Response) error {
	var payload errorPayload
	message := ""
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		if json.Unmarshal(raw, &payload) == nil {
			message = payload.Message
			if message == "" {
				message = payload.Error
			}
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", message, sentinel.ErrExpired)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w", message, sentinel.ErrAlreadyExists)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", message, sentinel.ErrNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", message, sentinel.ErrInvalidInput)
	default:
		return fmt.Errorf("%s: %w", message, sentinel.ErrUnavailable)
	}
}

func accountFromPayload(p *accountPayload) (*Account, error) {
	userID, err := domain.ParseUserID(p.ID)
	if err != nil {
		return nil, fmt.Errorf("identity returned malformed account id: %w", err)
	}
	return &Account{
		ID:             userID,
		Email:          p.Email,
		EmailConfirmed: p.EmailConfirmed,
		Metadata:       p.Metadata,
	}, nil
}

func sessionFromPayload(p *sessionPayload) (*Session, error) {
	session := &Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
	}
	if p.User != nil {
		account, err := accountFromPayload(p.User)
		if err != nil {
			return nil, err
		}
		session.Account = account
	}
	return session, nil
}
