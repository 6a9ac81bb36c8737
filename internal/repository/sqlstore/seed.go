package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// =========================================================================
// BULK LOADING
// =========================================================================
//
// Imports use lookup names where the API uses IDs; categories, difficulties,
// tags and authors are get-or-created. Each import is its own transaction,
// so one bad record leaves nothing behind and does not affect the others.

func (s *Store) CountChallenges(ctx context.Context) (int, error) {
	return s.count(ctx, "challenges")
}

func (s *Store) CountConversations(ctx context.Context) (int, error) {
	return s.count(ctx, "conversations")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.withTx(ctx, func(t *txn) error {
		if err := t.queryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return fmt.Errorf("counting %s: %w", table, err)
		}
		return nil
	})
	return n, err
}

// PurgeChallenges deletes every challenge and its children. Conversations
// must be purged first.
func (s *Store) PurgeChallenges(ctx context.Context) error {
	return s.withTx(ctx, func(t *txn) error {
		var refs int
		if err := t.queryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&refs); err != nil {
			return fmt.Errorf("counting conversations: %w", err)
		}
		if refs > 0 {
			return apperror.InUse("challenges", "(all)", "conversations")
		}
		return t.deleteAll(ctx, "challenge_tags", "learning_objectives", "hints", "challenges")
	})
}

// PurgeConversations deletes every conversation and post.
func (s *Store) PurgeConversations(ctx context.Context) error {
	return s.withTx(ctx, func(t *txn) error {
		return t.deleteAll(ctx, "posts", "conversations")
	})
}

func (t *txn) deleteAll(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := t.exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("purging %s: %w", table, err)
		}
	}
	return nil
}

// ImportChallenge stores one challenge from a seed file. An explicit
// ChallengeID is kept (and the counter raised past it); an empty one is
// allocated.
func (s *Store) ImportChallenge(ctx context.Context, in repository.ChallengeImport) (*model.Challenge, error) {
	var out *model.Challenge
	err := s.withTx(ctx, func(t *txn) error {
		categoryID, err := t.ensureCategory(ctx, in.Category)
		if err != nil {
			return err
		}
		difficultyID, err := t.ensureDifficulty(ctx, in.Difficulty)
		if err != nil {
			return err
		}

		id, err := t.insertChallenge(ctx, repository.ChallengeInput{
			ChallengeID:        in.ChallengeID,
			Title:              in.Title,
			Description:        in.Description,
			Points:             in.Points,
			CategoryID:         categoryID,
			DifficultyID:       difficultyID,
			Tags:               in.Tags,
			LearningObjectives: in.LearningObjectives,
			Hints:              in.Hints,
		})
		if err != nil {
			return err
		}
		out, err = t.challengeWhere(ctx, `c.id = ?`, id)
		return err
	})
	return out, err
}

// ImportConversation stores one conversation and its posts. Post authors
// are looked up by username; a username seen for the first time is created
// from newUser. Posts without a PostID get the next free one.
func (s *Store) ImportConversation(ctx context.Context, in repository.ConversationImport, newUser repository.UserFactory) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.withTx(ctx, func(t *txn) error {
		challengePK, err := t.challengePK(ctx, in.ChallengeID)
		if err != nil {
			return err
		}
		categoryID, err := t.ensureCategory(ctx, in.Category)
		if err != nil {
			return err
		}

		id, err := t.insertConversation(ctx, in.Identifier, in.Topic, categoryID, challengePK)
		if err != nil {
			return err
		}

		last := 0
		for _, p := range in.Posts {
			userID, err := t.ensureUser(ctx, p.Username, newUser)
			if err != nil {
				return err
			}

			postID := p.PostID
			if postID <= 0 {
				postID = last + 1
			}
			if _, err := t.insertPost(ctx, id, postID, userID, p.Content, p.Timestamp.UTC()); err != nil {
				return err
			}
			last = max(last, postID)
		}

		out, err = t.conversationWhere(ctx, `v.id = ?`, id)
		return err
	})
	return out, err
}

func (t *txn) ensureUser(ctx context.Context, username string, newUser repository.UserFactory) (int64, error) {
	return t.ensureNamed(ctx, "users", "username", username, func() (string, []any, error) {
		u, err := newUser(username)
		if err != nil {
			return "", nil, fmt.Errorf("building user %q: %w", username, err)
		}
		ts := now()
		return `INSERT INTO users (username, email, password_hash, is_support, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			[]any{u.Username, u.Email, u.PasswordHash, u.IsSupport, ts, ts}, nil
	})
}
