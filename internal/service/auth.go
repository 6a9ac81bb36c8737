package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// AuthService exchanges a username and password for an access token.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (lookup)
//	                               ↘ PasswordService (bcrypt check)
//	                               ↘ TokenService (JWT)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService wires the dependencies. tokens may be nil when no signing
// secret is configured; IssueToken then refuses every request.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued token.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresIn int // seconds
}

// IssueToken checks the credentials and signs a token for the user.
//
// An unknown username and a wrong password produce the same Unauthorized
// error so callers cannot probe which usernames exist.
func (s *AuthService) IssueToken(ctx context.Context, username, password string) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, apperror.Forbidden("token issuing is disabled on this server")
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.Unauthorized("invalid username or password")
		}
		return nil, err
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("token request rejected", slog.String("username", username))
			return nil, apperror.Unauthorized("invalid username or password")
		}
		// A stored hash bcrypt cannot parse.
		return nil, fmt.Errorf("verifying password for %q: %w", username, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("token issued", slog.Int64("userID", user.ID))
	return &AuthResult{
		User:      user,
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
	}, nil
}
