package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

const conversationSelect = `
	SELECT v.id, v.identifier, v.topic, v.category_id, ch.challenge_id, v.created_at, v.updated_at
	FROM conversations v
	JOIN challenges ch ON ch.id = v.challenge_id`

const postSelect = `
	SELECT p.id, p.post_id, v.identifier, p.user_id, p.content, p.timestamp, p.created_at, p.updated_at
	FROM posts p
	JOIN conversations v ON v.id = p.conversation_id`

// =========================================================================
// CREATE
// =========================================================================

// CreateConversation allocates the next CONV_ identifier and stores the
// conversation together with its first post (post_id 1).
func (s *Store) CreateConversation(ctx context.Context, in repository.ConversationInput) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.withTx(ctx, func(t *txn) error {
		if err := t.requireRow(ctx, "categories", "category", in.CategoryID); err != nil {
			return err
		}
		challengePK, err := t.challengePK(ctx, in.ChallengeID)
		if err != nil {
			return err
		}
		if err := t.requireRow(ctx, "users", "user", in.AuthorID); err != nil {
			return err
		}

		id, err := t.insertConversation(ctx, "", in.Topic, in.CategoryID, challengePK)
		if err != nil {
			return err
		}
		if _, err := t.insertPost(ctx, id, 1, in.AuthorID, in.InitialPost, now()); err != nil {
			return err
		}

		out, err = t.conversationWhere(ctx, `v.id = ?`, id)
		return err
	})
	return out, err
}

func (t *txn) insertConversation(ctx context.Context, ident, topic string, categoryID, challengePK int64) (int64, error) {
	key, err := t.identifierFor(ctx, conversationSeq, ident)
	if err != nil {
		return 0, err
	}

	ts := now()
	var id int64
	err = t.queryRow(ctx,
		`INSERT INTO conversations (identifier, topic, category_id, challenge_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		key, topic, categoryID, challengePK, ts, ts,
	).Scan(&id)
	if err != nil {
		if t.s.dialect.isUniqueViolation(err) {
			return 0, apperror.Conflict("conversation", "identifier", key)
		}
		return 0, fmt.Errorf("inserting conversation %s: %w", key, err)
	}
	return id, nil
}

func (t *txn) insertPost(ctx context.Context, conversationPK int64, postID int, userID int64, content string, at time.Time) (*model.Post, error) {
	ts := now()
	p := &model.Post{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		Timestamp: at,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	err := t.queryRow(ctx,
		`INSERT INTO posts (post_id, conversation_id, user_id, content, timestamp, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		postID, conversationPK, userID, content, at, ts, ts,
	).Scan(&p.ID)
	if err != nil {
		if t.s.dialect.isUniqueViolation(err) {
			return nil, apperror.Conflict("post", "post_id", strconv.Itoa(postID))
		}
		return nil, fmt.Errorf("inserting post %d: %w", postID, err)
	}
	return p, nil
}

// AddPost appends a post with post_id = max(post_id) + 1 for the
// conversation.
//
// The conversation row is updated (touching updated_at) before the MAX is
// read. That UPDATE holds the row lock until commit, so two concurrent
// AddPost calls on one conversation run one after the other and cannot read
// the same MAX.
func (s *Store) AddPost(ctx context.Context, identifier string, in repository.PostInput) (*model.Post, error) {
	var out *model.Post
	err := s.withTx(ctx, func(t *txn) error {
		convPK, err := t.conversationPK(ctx, identifier)
		if err != nil {
			return err
		}
		if err := t.requireRow(ctx, "users", "user", in.AuthorID); err != nil {
			return err
		}

		ts := now()
		if _, err := t.exec(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, ts, convPK); err != nil {
			return fmt.Errorf("locking conversation %s: %w", identifier, err)
		}

		var next int
		if err := t.queryRow(ctx,
			`SELECT COALESCE(MAX(post_id), 0) + 1 FROM posts WHERE conversation_id = ?`, convPK,
		).Scan(&next); err != nil {
			return fmt.Errorf("computing next post_id for %s: %w", identifier, err)
		}

		out, err = t.insertPost(ctx, convPK, next, in.AuthorID, in.Content, ts)
		if err != nil {
			return err
		}
		out.ConversationID = identifier
		return nil
	})
	return out, err
}

// =========================================================================
// READ
// =========================================================================

func (s *Store) GetConversation(ctx context.Context, identifier string) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		out, err = t.conversationByKey(ctx, identifier)
		return err
	})
	return out, err
}

func (t *txn) conversationByKey(ctx context.Context, identifier string) (*model.Conversation, error) {
	c, err := t.conversationWhere(ctx, `v.identifier = ?`, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("conversation", identifier)
	}
	return c, err
}

// conversationWhere loads a single conversation with posts, or returns
// sql.ErrNoRows.
func (t *txn) conversationWhere(ctx context.Context, where string, args ...any) (*model.Conversation, error) {
	list, err := t.conversations(ctx, where, args...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return &list[0], nil
}

func (t *txn) conversationPK(ctx context.Context, identifier string) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `SELECT id FROM conversations WHERE identifier = ?`, identifier).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.NotFound("conversation", identifier)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving conversation %s: %w", identifier, err)
	}
	return id, nil
}

// conversations runs conversationSelect with the given tail (a WHERE body,
// optionally followed by ORDER BY / LIMIT) and attaches posts.
func (t *txn) conversations(ctx context.Context, tail string, args ...any) ([]model.Conversation, error) {
	rows, err := t.query(ctx, conversationSelect+` WHERE `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	out := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.Identifier, &c.Topic, &c.CategoryID, &c.ChallengeID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.Posts = []model.Post{}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	index := make(map[string]*model.Conversation, len(out))
	ids := make([]any, len(out))
	for i := range out {
		index[out[i].Identifier] = &out[i]
		ids[i] = out[i].ID
	}

	posts, err := t.posts(ctx, `p.conversation_id IN (`+placeholders(len(ids))+`)`, ids...)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		c := index[p.ConversationID]
		c.Posts = append(c.Posts, p)
	}
	return out, nil
}

// posts returns posts matching where, grouped by conversation and ordered
// by post_id.
func (t *txn) posts(ctx context.Context, where string, args ...any) ([]model.Post, error) {
	rows, err := t.query(ctx, postSelect+` WHERE `+where+` ORDER BY p.conversation_id, p.post_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.PostID, &p.ConversationID, &p.UserID, &p.Content, &p.Timestamp, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListPosts(ctx context.Context, identifier string) ([]model.Post, error) {
	var out []model.Post
	err := s.withTx(ctx, func(t *txn) error {
		convPK, err := t.conversationPK(ctx, identifier)
		if err != nil {
			return err
		}
		out, err = t.posts(ctx, `p.conversation_id = ?`, convPK)
		return err
	})
	return out, err
}

// ListConversations applies the structured filters with AND. Search matches
// a conversation whose topic contains the term OR that has at least one post
// containing it; each conversation appears once however many posts match.
func (s *Store) ListConversations(ctx context.Context, f repository.ConversationFilter, opts repository.ListOptions) ([]model.Conversation, error) {
	conds := []string{`1 = 1`}
	var args []any

	if f.CategoryID != nil {
		conds = append(conds, `v.category_id = ?`)
		args = append(args, *f.CategoryID)
	}
	if f.ChallengeID != "" {
		conds = append(conds, `ch.challenge_id = ?`)
		args = append(args, f.ChallengeID)
	}
	if f.UserID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM posts up WHERE up.conversation_id = v.id AND up.user_id = ?)`)
		args = append(args, *f.UserID)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		conds = append(conds, `(LOWER(v.topic) LIKE LOWER(?) ESCAPE '\'
			OR EXISTS (SELECT 1 FROM posts sp WHERE sp.conversation_id = v.id AND LOWER(sp.content) LIKE LOWER(?) ESCAPE '\'))`)
		args = append(args, like, like)
	}

	limit, offset := clampList(opts)
	tail := strings.Join(conds, ` AND `) + ` ORDER BY v.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	out := []model.Conversation{}
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		out, err = t.conversations(ctx, tail, args...)
		return err
	})
	return out, err
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

func (s *Store) UpdateConversation(ctx context.Context, identifier string, patch repository.ConversationPatch) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.withTx(ctx, func(t *txn) error {
		convPK, err := t.conversationPK(ctx, identifier)
		if err != nil {
			return err
		}

		sets := []string{`updated_at = ?`}
		args := []any{now()}

		if patch.Topic != nil {
			sets = append(sets, `topic = ?`)
			args = append(args, *patch.Topic)
		}
		if patch.CategoryID != nil {
			if err := t.requireRow(ctx, "categories", "category", *patch.CategoryID); err != nil {
				return err
			}
			sets = append(sets, `category_id = ?`)
			args = append(args, *patch.CategoryID)
		}
		if patch.ChallengeID != nil {
			challengePK, err := t.challengePK(ctx, *patch.ChallengeID)
			if err != nil {
				return err
			}
			sets = append(sets, `challenge_id = ?`)
			args = append(args, challengePK)
		}

		args = append(args, convPK)
		if _, err := t.exec(ctx, `UPDATE conversations SET `+strings.Join(sets, `, `)+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("updating conversation %s: %w", identifier, err)
		}

		out, err = t.conversationWhere(ctx, `v.id = ?`, convPK)
		return err
	})
	return out, err
}

// DeleteConversation removes the conversation and all its posts and returns
// the conversation as it was.
func (s *Store) DeleteConversation(ctx context.Context, identifier string) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		out, err = t.conversationByKey(ctx, identifier)
		if err != nil {
			return err
		}
		if _, err := t.exec(ctx, `DELETE FROM posts WHERE conversation_id = ?`, out.ID); err != nil {
			return fmt.Errorf("deleting posts of %s: %w", identifier, err)
		}
		if _, err := t.exec(ctx, `DELETE FROM conversations WHERE id = ?`, out.ID); err != nil {
			return fmt.Errorf("deleting conversation %s: %w", identifier, err)
		}
		return nil
	})
	return out, err
}
