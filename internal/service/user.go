package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// UserService manages accounts. Passwords are bcrypt-hashed here, before
// the repository ever sees them.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	IsSupport bool
}

// UserPatch fields left nil are not changed.
type UserPatch struct {
	Username  *string
	Email     *string
	Password  *string
	IsSupport *bool
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*model.User, error) {
	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsSupport:    in.IsSupport,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	return s.users.ListUsers(ctx, listOptions(limit, offset))
}

// Me returns the caller's own record.
func (s *UserService) Me(ctx context.Context, callerID int64) (*model.User, error) {
	if callerID <= 0 {
		return nil, apperror.Unauthorized("caller identity required")
	}
	return s.users.GetUserByID(ctx, callerID)
}

// UpdateMe applies patch to the caller's record. Username and email stay
// unique; a new password is re-hashed.
func (s *UserService) UpdateMe(ctx context.Context, callerID int64, patch UserPatch) (*model.User, error) {
	user, err := s.Me(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil {
		if user.Username, err = validateUsername(*patch.Username); err != nil {
			return nil, err
		}
	}
	if patch.Email != nil {
		if user.Email, err = validateEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Password != nil {
		if user.PasswordHash, err = s.hashPassword(*patch.Password); err != nil {
			return nil, err
		}
	}
	if patch.IsSupport != nil {
		user.IsSupport = *patch.IsSupport
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", slog.Int64("id", user.ID))
	return user, nil
}

// WithPosts returns the user together with every post they wrote.
func (s *UserService) WithPosts(ctx context.Context, id int64) (*model.UserWithPosts, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	posts, err := s.users.ListPostsByUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing posts of user %d: %w", id, err)
	}
	return &model.UserWithPosts{User: *user, Posts: posts}, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if err := checkLength("username", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return "", err
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", apperror.ValidationFailed("username", "username must be alphanumeric")
		}
	}
	return username, nil
}

// validateEmail accepts a bare RFC 5322 address ("a@b.c"), not a display
// form like "Alice <a@b.c>".
func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", apperror.ValidationFailed("email", "invalid email format")
	}
	return email, nil
}
