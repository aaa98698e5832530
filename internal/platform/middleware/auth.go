package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims the identity provider puts in its access
// tokens. Only the subject is load-bearing here; everything else is carried
// for logging.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type sessionKey struct{}

type sessionValue struct {
	claims *SessionClaims
	token  string
}

// Session validates the Bearer access token minted by the identity provider
// (HS256, shared signing key) and stows the claims plus the raw token in the
// request context. Requests without a token pass through unauthenticated;
// handlers that need a session check GetSession themselves. The token stays
// available because resumption triggers forward it to the identity service.
func Session(signingKey string) func(http.Handler) http.Handler {
	key := []byte(signingKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims := &SessionClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				// Invalid token is treated as no session, not as a hard
				// rejection; the identity service stays the source of truth.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sessionValue{claims: claims, token: raw})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession returns the validated session claims and raw access token, if any.
func GetSession(ctx context.Context) (*SessionClaims, string, bool) {
	v, ok := ctx.Value(sessionKey{}).(sessionValue)
	if !ok {
		return nil, "", false
	}
	return v.claims, v.token, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
