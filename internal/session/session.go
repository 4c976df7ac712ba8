// Package session manages admin sessions and bearer tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	cookieName = "tbr_admin_session"
	cookiePath = "/api/admin"
	ttl        = 12 * time.Hour
)

var (
	ErrNoSession    = errors.New("session not found or expired")
	errEmptySession = errors.New("session key and data are required")
)

// Data is what a session remembers about the logged-in admin.
type Data struct {
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
}

// Manager issues and checks admin session cookies.
type Manager struct {
	store  Store
	secure bool
	now    func() time.Time
}

// Store defines the interface for session storage. Get returns
// ErrNoSession for unknown or expired keys.
type Store interface {
	Get(ctx context.Context, key string) (*Data, error)
	Set(ctx context.Context, key string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func NewManager(store Store, secure bool) *Manager {
	return &Manager{
		store:  store,
		secure: secure,
		now:    time.Now,
	}
}

func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

// CreateSession stores a new session and sets the cookie. Any session the
// request already carries is deleted so a login always rotates the ID.
func (m *Manager) CreateSession(ctx context.Context, w http.ResponseWriter, r *http.Request, data *Data) (string, error) {
	if data == nil {
		return "", fmt.Errorf("session data is required")
	}
	if r != nil {
		if previous, err := r.Cookie(cookieName); err == nil && previous.Value != "" {
			_ = m.store.Delete(ctx, previous.Value) //nolint
		}
	}

	sessionID := uuid.NewString()
	sessionData := cloneData(data)
	sessionData.CreatedAt = m.now().Unix()
	if err := m.store.Set(ctx, sessionID, sessionData, ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	http.SetCookie(w, m.cookie(sessionID, int(ttl.Seconds())))
	return sessionID, nil
}

// GetSession returns the admin session named by the request cookie.
func (m *Manager) GetSession(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	data, err := m.store.Get(ctx, cookie.Value)
	if err != nil {
		return nil, err
	}

	// Stores expire keys themselves; this also caps sessions written by a
	// longer-lived configuration.
	if m.now().Unix()-data.CreatedAt > int64(ttl.Seconds()) {
		_ = m.store.Delete(ctx, cookie.Value) //nolint
		return nil, ErrNoSession
	}

	return data, nil
}

// DestroySession removes the session and clears the cookie. The cookie is
// cleared even when the store delete fails.
func (m *Manager) DestroySession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var deleteErr error
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		deleteErr = m.store.Delete(ctx, cookie.Value)
	}

	http.SetCookie(w, m.cookie("", -1))
	return deleteErr
}

// cookie scopes the session to the admin API. Storefront requests never
// carry it.
func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     cookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func cloneData(data *Data) *Data {
	if data == nil {
		return nil
	}
	cloned := *data
	return &cloned
}
