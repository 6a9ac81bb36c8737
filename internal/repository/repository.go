// Package repository declares the storage interfaces the service layer
// depends on. internal/repository/sqlstore implements all of them.
//
// Every method is one unit of work: it either fully applies or leaves no
// trace. Methods return apperror values for NotFound and Conflict; any other
// error is a storage failure.
package repository

import (
	"context"
	"time"

	"github.com/sakif/challenge-hub/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// =========================================================================
// USERS
// =========================================================================

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	ListPostsByUser(ctx context.Context, userID int64) ([]model.Post, error)
}

// =========================================================================
// CATALOG (lookup tables)
// =========================================================================

type CatalogRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)

	CreateDifficulty(ctx context.Context, difficulty *model.Difficulty) error
	GetDifficulty(ctx context.Context, id int64) (*model.Difficulty, error)
	ListDifficulties(ctx context.Context) ([]model.Difficulty, error)

	ListTags(ctx context.Context) ([]model.Tag, error)

	// Ensure* return the row with the given name, creating it if absent.
	// Concurrent callers racing on the same name all get the same row.
	EnsureCategory(ctx context.Context, name string) (*model.Category, error)
	EnsureDifficulty(ctx context.Context, name string) (*model.Difficulty, error)
	EnsureTag(ctx context.Context, name string) (*model.Tag, error)
}

// =========================================================================
// CHALLENGES
// =========================================================================

// ChallengeInput creates a challenge with its children. An empty ChallengeID
// asks storage to allocate the next CHAL_NNN.
type ChallengeInput struct {
	ChallengeID        string
	Title              string
	Description        string
	Points             int
	CategoryID         int64
	DifficultyID       int64
	Tags               []string
	LearningObjectives []string
	Hints              []string
}

// ChallengePatch is a partial update. A nil field is left untouched. For the
// collections, a non-nil pointer to an empty slice clears the collection.
type ChallengePatch struct {
	Title              *string
	Description        *string
	Points             *int
	CategoryID         *int64
	DifficultyID       *int64
	Tags               *[]string
	LearningObjectives *[]string
	Hints              *[]string
}

// ChallengeFilter criteria are ANDed. Every tag in Tags must be present.
type ChallengeFilter struct {
	CategoryID   *int64
	DifficultyID *int64
	MinPoints    *int
	MaxPoints    *int
	Search       string
	Tags         []string
}

type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, in ChallengeInput) (*model.Challenge, error)
	GetChallenge(ctx context.Context, challengeID string) (*model.Challenge, error)
	UpdateChallenge(ctx context.Context, challengeID string, patch ChallengePatch) (*model.Challenge, error)
	DeleteChallenge(ctx context.Context, challengeID string) (*model.Challenge, error)
	ListChallenges(ctx context.Context, filter ChallengeFilter, opts ListOptions) ([]model.Challenge, error)
	ListConversationsByChallenge(ctx context.Context, challengeID string) ([]model.Conversation, error)
}

// =========================================================================
// CONVERSATIONS
// =========================================================================

// ConversationInput creates a conversation and its first post, authored by
// AuthorID.
type ConversationInput struct {
	Topic       string
	CategoryID  int64
	ChallengeID string
	InitialPost string
	AuthorID    int64
}

type ConversationPatch struct {
	Topic       *string
	CategoryID  *int64
	ChallengeID *string
}

// ConversationFilter criteria are ANDed, except Search, which matches a
// conversation whose topic OR any of whose posts contains the term.
type ConversationFilter struct {
	CategoryID  *int64
	ChallengeID string
	UserID      *int64
	Search      string
}

type PostInput struct {
	AuthorID int64
	Content  string
}

type ConversationRepository interface {
	CreateConversation(ctx context.Context, in ConversationInput) (*model.Conversation, error)
	GetConversation(ctx context.Context, identifier string) (*model.Conversation, error)
	UpdateConversation(ctx context.Context, identifier string, patch ConversationPatch) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, identifier string) (*model.Conversation, error)
	ListConversations(ctx context.Context, filter ConversationFilter, opts ListOptions) ([]model.Conversation, error)
	ListPosts(ctx context.Context, identifier string) ([]model.Post, error)
	AddPost(ctx context.Context, identifier string, in PostInput) (*model.Post, error)
}

// =========================================================================
// BULK LOADING
// =========================================================================

// ChallengeImport carries lookup names instead of IDs; the importer
// get-or-creates them.
type ChallengeImport struct {
	ChallengeID        string
	Title              string
	Description        string
	Points             int
	Category           string
	Difficulty         string
	Tags               []string
	LearningObjectives []string
	Hints              []string
}

type PostImport struct {
	PostID    int
	Username  string
	Content   string
	Timestamp time.Time
}

type ConversationImport struct {
	Identifier  string
	Topic       string
	Category    string
	ChallengeID string
	Posts       []PostImport
}

// UserFactory builds the row for a username first seen during an import.
type UserFactory func(username string) (*model.User, error)

type SeedRepository interface {
	CountChallenges(ctx context.Context) (int, error)
	CountConversations(ctx context.Context) (int, error)
	PurgeChallenges(ctx context.Context) error
	PurgeConversations(ctx context.Context) error
	ImportChallenge(ctx context.Context, in ChallengeImport) (*model.Challenge, error)
	ImportConversation(ctx context.Context, in ConversationImport, newUser UserFactory) (*model.Conversation, error)
}
