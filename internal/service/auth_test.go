package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/auth"
)

func newTestAuthService(t *testing.T, withTokens bool) (*AuthService, *mockUserRepo, *auth.TokenService) {
	t.Helper()

	repo := newMockUserRepo()
	passwords := testPasswords()
	hash, err := passwords.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := repo.CreateUser(context.Background(), newUser("alice", hash)); err != nil {
		t.Fatalf("setup: CreateUser() error = %v", err)
	}

	var tokens *auth.TokenService
	if withTokens {
		tokens, err = auth.NewTokenService("test-secret-that-is-long-enough")
		if err != nil {
			t.Fatalf("NewTokenService() error = %v", err)
		}
	}
	return NewAuthService(repo, tokens, passwords, testLogger()), repo, tokens
}

func TestIssueToken_Success(t *testing.T) {
	svc, _, tokens := newTestAuthService(t, true)

	result, err := svc.IssueToken(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if result.User.Username != "alice" {
		t.Errorf("User.Username = %q, want alice", result.User.Username)
	}
	if result.ExpiresIn != int(auth.DefaultTokenTTL.Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", result.ExpiresIn, int(auth.DefaultTokenTTL.Seconds()))
	}

	id, err := tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if id != result.User.ID {
		t.Errorf("token subject = %d, want %d", id, result.User.ID)
	}
}

func TestIssueToken_BadCredentials(t *testing.T) {
	svc, _, _ := newTestAuthService(t, true)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"wrong password", "alice", "wrong-horse", apperror.ErrUnauthorized},
		{"unknown user", "bob", "correct-horse", apperror.ErrUnauthorized},
		{"empty password", "alice", "", apperror.ErrValidation},
		{"empty username", "  ", "correct-horse", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IssueToken(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIssueToken_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	svc, _, _ := newTestAuthService(t, true)

	_, errUnknown := svc.IssueToken(context.Background(), "bob", "correct-horse")
	_, errWrong := svc.IssueToken(context.Background(), "alice", "wrong-horse")
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestIssueToken_Disabled(t *testing.T) {
	svc, _, _ := newTestAuthService(t, false)

	_, err := svc.IssueToken(context.Background(), "alice", "correct-horse")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestIssueToken_StorageFailure(t *testing.T) {
	svc, repo, _ := newTestAuthService(t, true)
	repo.err = errors.New("disk on fire")

	_, err := svc.IssueToken(context.Background(), "alice", "correct-horse")
	if err == nil || isAppError(err) {
		t.Errorf("error = %v, want a raw storage error", err)
	}
}
