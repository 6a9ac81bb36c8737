package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// In-memory stand-ins for the repository interfaces. They store copies so
// a test cannot mutate state behind the service's back, and they record the
// last input they were handed so tests can assert what validation passed on.

var (
	_ repository.UserRepository         = (*mockUserRepo)(nil)
	_ repository.CatalogRepository      = (*mockCatalogRepo)(nil)
	_ repository.ChallengeRepository    = (*mockChallengeRepo)(nil)
	_ repository.ConversationRepository = (*mockConversationRepo)(nil)
)

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
	err    error // returned by every call when set
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", "username", user.Username)
		}
		if u.Email == user.Email {
			return apperror.Conflict("user", "email", user.Email)
		}
	}
	m.nextID++
	user.ID = m.nextID
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[user.ID]; !ok {
		return apperror.NotFound("user", fmt.Sprint(user.ID))
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) ListUsers(_ context.Context, _ repository.ListOptions) ([]model.User, error) {
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, m.err
}

func (m *mockUserRepo) ListPostsByUser(_ context.Context, userID int64) ([]model.Post, error) {
	if _, ok := m.users[userID]; !ok {
		return nil, apperror.NotFound("user", fmt.Sprint(userID))
	}
	return []model.Post{{PostID: 1, UserID: userID, Content: "hello"}}, nil
}

type mockCatalogRepo struct {
	categories   []model.Category
	difficulties []model.Difficulty
}

func (m *mockCatalogRepo) CreateCategory(_ context.Context, c *model.Category) error {
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return apperror.Conflict("category", "name", c.Name)
		}
	}
	c.ID = int64(len(m.categories) + 1)
	m.categories = append(m.categories, *c)
	return nil
}

func (m *mockCatalogRepo) GetCategory(_ context.Context, id int64) (*model.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, apperror.NotFound("category", fmt.Sprint(id))
}

func (m *mockCatalogRepo) ListCategories(context.Context) ([]model.Category, error) {
	return m.categories, nil
}

func (m *mockCatalogRepo) CreateDifficulty(_ context.Context, d *model.Difficulty) error {
	d.ID = int64(len(m.difficulties) + 1)
	m.difficulties = append(m.difficulties, *d)
	return nil
}

func (m *mockCatalogRepo) GetDifficulty(_ context.Context, id int64) (*model.Difficulty, error) {
	for _, d := range m.difficulties {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, apperror.NotFound("difficulty", fmt.Sprint(id))
}

func (m *mockCatalogRepo) ListDifficulties(context.Context) ([]model.Difficulty, error) {
	return m.difficulties, nil
}

func (m *mockCatalogRepo) ListTags(context.Context) ([]model.Tag, error) {
	return []model.Tag{}, nil
}

func (m *mockCatalogRepo) EnsureCategory(_ context.Context, name string) (*model.Category, error) {
	return &model.Category{Name: name}, nil
}

func (m *mockCatalogRepo) EnsureDifficulty(_ context.Context, name string) (*model.Difficulty, error) {
	return &model.Difficulty{Name: name}, nil
}

func (m *mockCatalogRepo) EnsureTag(_ context.Context, name string) (*model.Tag, error) {
	return &model.Tag{Name: name}, nil
}

type mockChallengeRepo struct {
	created    *repository.ChallengeInput
	patched    *repository.ChallengePatch
	filtered   *repository.ChallengeFilter
	listedWith repository.ListOptions
	err        error
}

func (m *mockChallengeRepo) CreateChallenge(_ context.Context, in repository.ChallengeInput) (*model.Challenge, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &in
	id := in.ChallengeID
	if id == "" {
		id = "CHAL_001"
	}
	tags := make([]model.Tag, len(in.Tags))
	for i, name := range in.Tags {
		tags[i] = model.Tag{ID: int64(i + 1), Name: name}
	}
	return &model.Challenge{ID: 1, ChallengeID: id, Title: in.Title, Tags: tags}, nil
}

func (m *mockChallengeRepo) GetChallenge(_ context.Context, challengeID string) (*model.Challenge, error) {
	if challengeID != "CHAL_001" {
		return nil, apperror.NotFound("challenge", challengeID)
	}
	return &model.Challenge{ID: 1, ChallengeID: challengeID}, nil
}

func (m *mockChallengeRepo) UpdateChallenge(_ context.Context, challengeID string, patch repository.ChallengePatch) (*model.Challenge, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.patched = &patch
	return &model.Challenge{ID: 1, ChallengeID: challengeID}, nil
}

func (m *mockChallengeRepo) DeleteChallenge(_ context.Context, challengeID string) (*model.Challenge, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Challenge{ID: 1, ChallengeID: challengeID}, nil
}

func (m *mockChallengeRepo) ListChallenges(_ context.Context, f repository.ChallengeFilter, opts repository.ListOptions) ([]model.Challenge, error) {
	m.filtered = &f
	m.listedWith = opts
	return []model.Challenge{}, nil
}

func (m *mockChallengeRepo) ListConversationsByChallenge(_ context.Context, challengeID string) ([]model.Conversation, error) {
	return []model.Conversation{{Identifier: "CONV_001", ChallengeID: challengeID}}, nil
}

type mockConversationRepo struct {
	created  *repository.ConversationInput
	patched  *repository.ConversationPatch
	filtered *repository.ConversationFilter
	posted   *repository.PostInput
	posts    int
	err      error
}

func (m *mockConversationRepo) CreateConversation(_ context.Context, in repository.ConversationInput) (*model.Conversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &in
	m.posts = 1
	return &model.Conversation{
		ID:          1,
		Identifier:  "CONV_001",
		Topic:       in.Topic,
		ChallengeID: in.ChallengeID,
		Posts:       []model.Post{{PostID: 1, UserID: in.AuthorID, Content: in.InitialPost}},
	}, nil
}

func (m *mockConversationRepo) GetConversation(_ context.Context, identifier string) (*model.Conversation, error) {
	if identifier != "CONV_001" {
		return nil, apperror.NotFound("conversation", identifier)
	}
	return &model.Conversation{ID: 1, Identifier: identifier}, nil
}

func (m *mockConversationRepo) UpdateConversation(_ context.Context, identifier string, patch repository.ConversationPatch) (*model.Conversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.patched = &patch
	return &model.Conversation{ID: 1, Identifier: identifier}, nil
}

func (m *mockConversationRepo) DeleteConversation(_ context.Context, identifier string) (*model.Conversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	if identifier != "CONV_001" {
		return nil, apperror.NotFound("conversation", identifier)
	}
	return &model.Conversation{ID: 1, Identifier: identifier}, nil
}

func (m *mockConversationRepo) ListConversations(_ context.Context, f repository.ConversationFilter, _ repository.ListOptions) ([]model.Conversation, error) {
	m.filtered = &f
	return []model.Conversation{}, nil
}

func (m *mockConversationRepo) ListPosts(_ context.Context, identifier string) ([]model.Post, error) {
	if identifier != "CONV_001" {
		return nil, apperror.NotFound("conversation", identifier)
	}
	return []model.Post{}, nil
}

func (m *mockConversationRepo) AddPost(_ context.Context, identifier string, in repository.PostInput) (*model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.posted = &in
	m.posts++
	return &model.Post{PostID: m.posts, ConversationID: identifier, UserID: in.AuthorID, Content: in.Content}, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// capturingLogger records text output for tests that assert on logs.
func capturingLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func testPasswords() *auth.PasswordService {
	return auth.NewPasswordServiceWithCost(bcrypt.MinCost)
}

func ptr[T any](v T) *T { return &v }
