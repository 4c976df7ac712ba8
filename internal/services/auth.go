package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/session"
)

var ErrAuthUnavailable = errors.New("auth service unavailable")

// dummyHash keeps the bcrypt cost constant for unknown usernames.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6ZpSd8QCm0Gq3R5yYH9hC2e")

type AuthConfig struct {
	Username     string
	PasswordHash string
}

// AuthService checks admin credentials and issues bearer tokens.
type AuthService struct {
	username     string
	passwordHash []byte
	tokens       *session.TokenIssuer
	logger       *slog.Logger
}

func NewAuthService(cfg AuthConfig, tokens *session.TokenIssuer, logger *slog.Logger) (*AuthService, error) {
	if strings.TrimSpace(cfg.Username) == "" || cfg.PasswordHash == "" {
		return nil, fmt.Errorf("admin credentials are required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("auth service token issuer is required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return &AuthService{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
		tokens:       tokens,
		logger:       logger,
	}, nil
}

func (s *AuthService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login returns ErrInvalidCredentials for any mismatch without saying which
// field was wrong.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if s == nil || s.tokens == nil {
		return nil, ErrAuthUnavailable
	}
	logger := s.loggerFromContext(ctx)

	userMatch := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(input.Username)), []byte(s.username)) == 1
	hash := s.passwordHash
	if !userMatch {
		hash = dummyHash
	}
	passwordErr := bcrypt.CompareHashAndPassword(hash, []byte(input.Password))
	if !userMatch || passwordErr != nil {
		logger.Warn("admin login rejected", "username", input.Username)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(s.username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue admin token: %w", err)
	}

	logger.Info("admin logged in", "username", s.username)
	return &LoginResult{Username: s.username, Token: token, ExpiresAt: expiresAt}, nil
}
