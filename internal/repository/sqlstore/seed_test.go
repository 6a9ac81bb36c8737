package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

func countingFactory(calls *int) repository.UserFactory {
	return func(username string) (*model.User, error) {
		*calls++
		return &model.User{Username: username, Email: username + "@example.com", PasswordHash: "seed"}, nil
	}
}

func TestImportChallenge_GetOrCreatesLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := repository.ChallengeImport{
		ChallengeID: "CHAL_007",
		Title:       "Imported challenge",
		Description: "Imported from a seed file.",
		Points:      75,
		Category:    "Forensics",
		Difficulty:  "Medium",
		Tags:        []string{"disk", "memory"},
		Hints:       []string{"Look at the slack space"},
	}
	c, err := s.ImportChallenge(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "CHAL_007", c.ChallengeID)
	assert.Equal(t, "Forensics", c.Category.Name)
	assert.Equal(t, "Category for Forensics", c.Category.Description)
	assert.Equal(t, "Medium", c.Difficulty.Name)

	in.ChallengeID = ""
	in.Title = "Second import"
	c2, err := s.ImportChallenge(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "CHAL_008", c2.ChallengeID, "counter follows imported ids")
	assert.Equal(t, c.Category.ID, c2.Category.ID)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	in.ChallengeID = "CHAL_007"
	_, err = s.ImportChallenge(ctx, in)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	n, err := s.CountChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ImportChallenge(ctx, repository.ChallengeImport{
		ChallengeID: "CHAL_001", Title: "Base challenge", Description: "Something to discuss.",
		Category: "Web", Difficulty: "Easy",
	})
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	c, err := s.ImportConversation(ctx, repository.ConversationImport{
		Identifier:  "CONV_005",
		Topic:       "Imported thread",
		Category:    "Web",
		ChallengeID: "CHAL_001",
		Posts: []repository.PostImport{
			{PostID: 1, Username: "student1", Content: "question", Timestamp: at},
			{PostID: 2, Username: "support_team", Content: "answer", Timestamp: at.Add(time.Hour)},
			{Username: "student1", Content: "thanks", Timestamp: at.Add(2 * time.Hour)},
		},
	}, countingFactory(&calls))
	require.NoError(t, err)

	assert.Equal(t, "CONV_005", c.Identifier)
	assert.Equal(t, []int{1, 2, 3}, postIDs(c.Posts))
	assert.True(t, c.Posts[0].Timestamp.Equal(at), "import keeps the supplied timestamp")
	assert.Equal(t, 2, calls, "factory runs once per new username")
	assert.Equal(t, c.Posts[0].UserID, c.Posts[2].UserID)

	next, err := s.ImportConversation(ctx, repository.ConversationImport{
		Topic: "Allocated thread", Category: "Web", ChallengeID: "CHAL_001",
		Posts: []repository.PostImport{{Username: "student1", Content: "hi", Timestamp: at}},
	}, countingFactory(&calls))
	require.NoError(t, err)
	assert.Equal(t, "CONV_006", next.Identifier)
	assert.Equal(t, 2, calls)
}

func TestImportConversation_FailureLeavesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	calls := 0
	_, err := s.ImportConversation(ctx, repository.ConversationImport{
		Identifier: "CONV_001", Topic: "Orphan thread", Category: "Web", ChallengeID: "CHAL_404",
		Posts: []repository.PostImport{{Username: "someone", Content: "x"}},
	}, countingFactory(&calls))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	n, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.GetUserByUsername(ctx, "someone")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ImportChallenge(ctx, repository.ChallengeImport{
		Title: "Purged challenge", Description: "Will be purged.", Category: "Web", Difficulty: "Easy",
		Tags: []string{"web"},
	})
	require.NoError(t, err)
	calls := 0
	_, err = s.ImportConversation(ctx, repository.ConversationImport{
		Topic: "Purged thread", Category: "Web", ChallengeID: "CHAL_001",
		Posts: []repository.PostImport{{Username: "someone", Content: "x", Timestamp: time.Now()}},
	}, countingFactory(&calls))
	require.NoError(t, err)

	assert.ErrorIs(t, s.PurgeChallenges(ctx), apperror.ErrConflict, "conversations still reference challenges")

	require.NoError(t, s.PurgeConversations(ctx))
	require.NoError(t, s.PurgeChallenges(ctx))

	n, err := s.CountChallenges(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Lookup rows and users survive a purge.
	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
	_, err = s.GetUserByUsername(ctx, "someone")
	assert.NoError(t, err)
}

func TestEnsureNamed_ReturnsExistingRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureTag(ctx, "web")
	require.NoError(t, err)
	second, err := s.EnsureTag(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	d1, err := s.EnsureDifficulty(ctx, "Hard")
	require.NoError(t, err)
	d2, err := s.EnsureDifficulty(ctx, "Hard")
	require.NoError(t, err)
	assert.Equal(t, d1.ID, d2.ID)
}

func TestEnsureNamed_UniqueViolationRollsBackToSavepoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	existing, err := s.EnsureTag(ctx, "race")
	require.NoError(t, err)

	// Drive the insert path into a unique violation: the lookup misses, the
	// builder inserts a name that already exists, and the INSERT collides.
	var id int64
	err = s.withTx(ctx, func(tx *txn) error {
		var err error
		id, err = tx.ensureNamed(ctx, "tags", "name", "no-such-name", func() (string, []any, error) {
			ts := now()
			return `INSERT INTO tags (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
				[]any{"race", ts, ts}, nil
		})
		return err
	})
	// The re-read looks up the requested name, which does not exist, so the
	// lookup fails after a clean rollback to the savepoint.
	require.Error(t, err)
	assert.Zero(t, id)

	// The surrounding transaction stayed usable and nothing leaked.
	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, existing.ID, tags[0].ID)
}

func TestCategoryAndDifficultyCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := &model.Category{Name: "Reversing", Description: "Binaries"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	assert.NotZero(t, cat.ID)
	assert.ErrorIs(t, s.CreateCategory(ctx, &model.Category{Name: "Reversing"}), apperror.ErrConflict)

	got, err := s.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Binaries", got.Description)
	_, err = s.GetCategory(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	d := &model.Difficulty{Name: "Insane"}
	require.NoError(t, s.CreateDifficulty(ctx, d))
	assert.ErrorIs(t, s.CreateDifficulty(ctx, &model.Difficulty{Name: "Insane"}), apperror.ErrConflict)
	_, err = s.GetDifficulty(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	list, err := s.ListDifficulties(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
