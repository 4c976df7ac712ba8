package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const ctxKey contextKey = "admin"

// AuthMethod records how an admin request was authenticated.
type AuthMethod string

const (
	AuthCookie AuthMethod = "cookie"
	AuthBearer AuthMethod = "bearer"
)

// Principal is the authenticated admin attached to a request.
type Principal struct {
	Username string
	Method   AuthMethod
}

// Authenticator accepts either a bearer token or a session cookie.
type Authenticator struct {
	sessions *Manager
	tokens   *TokenIssuer
}

func NewAuthenticator(sessions *Manager, tokens *TokenIssuer) *Authenticator {
	return &Authenticator{sessions: sessions, tokens: tokens}
}

// Authenticate resolves the principal for r. A malformed bearer header is
// rejected outright rather than falling back to the cookie.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || a.tokens == nil {
			return nil, false
		}
		username, err := a.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			return nil, false
		}
		return &Principal{Username: username, Method: AuthBearer}, true
	}

	if a.sessions == nil {
		return nil, false
	}
	data, err := a.sessions.GetSession(r.Context(), r)
	if err != nil {
		return nil, false
	}
	return &Principal{Username: data.Username, Method: AuthCookie}, true
}

// RequireAdmin rejects unauthenticated requests with a JSON 401.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := a.Authenticate(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "authentication required",
				"code":  "unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, ctxKey, principal)
}

// PrincipalFromContext returns the admin attached by RequireAdmin, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	principal, ok := ctx.Value(ctxKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
