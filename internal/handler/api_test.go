package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/handler"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository/sqlstore"
	"github.com/sakif/challenge-hub/internal/service"
)

// testAPI is the full handler stack over an in-memory store.
type testAPI struct {
	t      *testing.T
	router http.Handler
	store  *sqlstore.Store
	tokens *auth.TokenService
}

func newTestAPI(t *testing.T, defaultUserID int64) *testAPI {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store, err := sqlstore.Open(context.Background(), sqlstore.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	users := handler.NewUserHandler(service.NewUserService(store, passwords, logger), logger)
	catalog := handler.NewCatalogHandler(service.NewCatalogService(store, logger), logger)
	challenges := handler.NewChallengeHandler(service.NewChallengeService(store, logger), logger)
	conversations := handler.NewConversationHandler(service.NewConversationService(store, logger), logger)
	authHandler := handler.NewAuthHandler(service.NewAuthService(store, tokens, passwords, logger), logger)

	r := chi.NewRouter()
	r.Use(auth.Identity(auth.IdentityConfig{Tokens: tokens, DefaultUserID: defaultUserID}))
	r.Get("/health", handler.NewHealthHandler(store, logger).HandleHealth)
	authHandler.RegisterRoutes(r)
	catalog.RegisterRoutes(r)
	r.Route("/users", func(r chi.Router) { users.RegisterRoutes(r, auth.RequireIdentity) })
	r.Route("/challenges", challenges.RegisterRoutes)
	r.Route("/conversations", func(r chi.Router) { conversations.RegisterRoutes(r, auth.RequireIdentity) })

	return &testAPI{t: t, router: r, store: store, tokens: tokens}
}

func (a *testAPI) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// seedBasics creates user 1, category 1 and difficulty 1.
func (a *testAPI) seedBasics() {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/users", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "password1",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/categories", map[string]any{"name": "Algorithms"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/difficulties", map[string]any{"name": "Easy"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func challengeBody(title string, tags ...string) map[string]any {
	return map[string]any{
		"title":               title,
		"description":         "A description long enough to pass.",
		"points":              10,
		"category_id":         1,
		"difficulty_id":       1,
		"tags":                tags,
		"learning_objectives": []string{"Learn something"},
		"hints":               []string{"Look closely"},
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, 1)

	rec := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChallengeLifecycle(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()

	rec := api.do(http.MethodPost, "/challenges", challengeBody("Two Sum", "arrays", "hashing"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[model.Challenge](t, rec)
	assert.Equal(t, "CHAL_001", first.ChallengeID)
	assert.Len(t, first.Tags, 2)
	assert.Len(t, first.LearningObjectives, 1)
	assert.Len(t, first.Hints, 1)

	rec = api.do(http.MethodPost, "/challenges", challengeBody("Three Sum", "arrays"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "CHAL_002", decode[model.Challenge](t, rec).ChallengeID)

	rec = api.do(http.MethodGet, "/challenges?tags=arrays&tags=hashing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.Challenge](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "CHAL_001", list[0].ChallengeID)

	rec = api.do(http.MethodPut, "/challenges/CHAL_002", map[string]any{"points": 50, "tags": []string{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Challenge](t, rec)
	assert.Equal(t, 50, updated.Points)
	assert.Empty(t, updated.Tags)
	assert.Equal(t, "Three Sum", updated.Title)

	rec = api.do(http.MethodDelete, "/challenges/CHAL_001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CHAL_001", decode[model.Challenge](t, rec).ChallengeID)

	rec = api.do(http.MethodGet, "/challenges/CHAL_001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Shared tags survive the delete.
	rec = api.do(http.MethodGet, "/tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Tag](t, rec), 2)
}

func TestChallengeErrors(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantField  string
	}{
		{"unknown field", http.MethodPost, "/challenges", `{"title":"abc","color":"red"}`, http.StatusBadRequest, "body"},
		{"malformed json", http.MethodPost, "/challenges", `{"title":`, http.StatusBadRequest, "body"},
		{"short title", http.MethodPost, "/challenges", challengeBody("ab"), http.StatusBadRequest, "title"},
		{"unknown category", http.MethodPost, "/challenges", map[string]any{
			"title": "Valid title", "description": "Long enough description", "category_id": 9, "difficulty_id": 1,
		}, http.StatusNotFound, ""},
		{"bad number filter", http.MethodGet, "/challenges?min_points=lots", nil, http.StatusBadRequest, "min_points"},
		{"negative filter", http.MethodGet, "/challenges?max_points=-1", nil, http.StatusBadRequest, "max_points"},
		{"unknown challenge", http.MethodGet, "/challenges/CHAL_404", nil, http.StatusNotFound, ""},
		{"malformed key", http.MethodGet, "/challenges/not-a-key", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode[handler.ErrorResponse](t, rec)
			assert.Equal(t, tt.wantField, body.Field)
		})
	}
}

func TestConversationFlow(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/challenges", challengeBody("Two Sum")).Code)

	rec := api.do(http.MethodPost, "/conversations", map[string]any{
		"topic":        "Stuck on hashing",
		"category_id":  1,
		"challenge_id": "CHAL_001",
		"initial_post": "Where do I start?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[model.Conversation](t, rec)
	assert.Equal(t, "CONV_001", conv.Identifier)
	require.Len(t, conv.Posts, 1)
	assert.Equal(t, 1, conv.Posts[0].PostID)
	assert.Equal(t, int64(1), conv.Posts[0].UserID)

	rec = api.do(http.MethodPost, "/conversations/CONV_001/posts", map[string]any{"content": "Try a map."})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[model.Post](t, rec).PostID)

	rec = api.do(http.MethodGet, "/conversations/CONV_001/posts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decode[[]model.Post](t, rec)
	require.Len(t, posts, 2)
	assert.Equal(t, []int{1, 2}, []int{posts[0].PostID, posts[1].PostID})

	rec = api.do(http.MethodGet, "/conversations?search=map", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Conversation](t, rec), 1)

	rec = api.do(http.MethodGet, "/challenges/CHAL_001/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Conversation](t, rec), 1)

	rec = api.do(http.MethodGet, "/users/1/posts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.UserWithPosts](t, rec).Posts, 2)

	// Referenced challenges cannot be deleted.
	rec = api.do(http.MethodDelete, "/challenges/CHAL_001", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodDelete, "/conversations/CONV_001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.Conversation](t, rec).Posts, 2)

	rec = api.do(http.MethodGet, "/conversations/CONV_001/posts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationAcceptsIgnoredLegacyFields(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/challenges", challengeBody("Two Sum")).Code)

	rec := api.do(http.MethodPost, "/conversations", map[string]any{
		"identifier":   "CONV_777",
		"topic":        "Stuck on hashing",
		"category_id":  1,
		"challenge_id": "CHAL_001",
		"initial_post": "Where do I start?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "CONV_001", decode[model.Conversation](t, rec).Identifier)

	rec = api.do(http.MethodPost, "/conversations/CONV_001/posts", map[string]any{
		"content":   "Try a map.",
		"user_id":   99,
		"timestamp": "2001-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode[model.Post](t, rec)
	assert.Equal(t, int64(1), post.UserID)
	assert.Greater(t, post.Timestamp.Year(), 2001)

	// Fields nobody ever sent are still rejected.
	rec = api.do(http.MethodPost, "/conversations/CONV_001/posts", map[string]any{"content": "x", "votes": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationErrors(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()

	rec := api.do(http.MethodPost, "/conversations", map[string]any{
		"topic": "Valid two words", "category_id": 1, "challenge_id": "CHAL_009", "initial_post": "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/conversations", map[string]any{
		"topic": "Valid two words", "category_id": 1, "challenge_id": "nine", "initial_post": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "challenge_id", decode[handler.ErrorResponse](t, rec).Field)

	rec = api.do(http.MethodPost, "/conversations/CONV_404/posts", map[string]any{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/conversations?user_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymousCallerCannotWrite(t *testing.T) {
	api := newTestAPI(t, 0)

	rec := api.do(http.MethodPost, "/conversations", map[string]any{"topic": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Reads stay open.
	rec = api.do(http.MethodGet, "/conversations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUsers(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()

	rec := api.do(http.MethodPost, "/users", map[string]any{
		"username": "alice", "email": "other@example.com", "password": "password1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username", decode[handler.ErrorResponse](t, rec).Field)

	rec = api.do(http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, "alice", decode[model.User](t, rec).Username)

	rec = api.do(http.MethodPut, "/users/me", map[string]any{"is_support": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[model.User](t, rec).IsSupport)

	rec = api.do(http.MethodGet, "/users/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/users?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalog(t *testing.T) {
	api := newTestAPI(t, 1)
	api.seedBasics()

	rec := api.do(http.MethodPost, "/categories", map[string]any{"name": "Algorithms"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodGet, "/categories/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Algorithms", decode[model.Category](t, rec).Name)

	rec = api.do(http.MethodGet, "/difficulties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Difficulty](t, rec), 1)

	rec = api.do(http.MethodGet, "/difficulties/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenAuth(t *testing.T) {
	api := newTestAPI(t, 0)
	api.seedBasics()

	rec := api.do(http.MethodPost, "/auth/token", map[string]any{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/auth/token", map[string]any{"username": "alice", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = api.do(http.MethodGet, "/users/me", nil, "Authorization", "Bearer "+tok.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[model.User](t, rec).Username)

	rec = api.do(http.MethodGet, "/users/me", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
