package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

const challengeSelect = `
	SELECT c.id, c.challenge_id, c.title, c.description, c.points, c.category_id, c.difficulty_id,
	       c.created_at, c.updated_at,
	       cat.id, cat.name, cat.description, cat.created_at, cat.updated_at,
	       d.id, d.name, d.created_at, d.updated_at
	FROM challenges c
	JOIN categories cat ON cat.id = c.category_id
	JOIN difficulties d ON d.id = c.difficulty_id`

func scanChallenge(row interface{ Scan(...any) error }) (model.Challenge, error) {
	var (
		c   model.Challenge
		cat model.Category
		d   model.Difficulty
	)
	err := row.Scan(
		&c.ID, &c.ChallengeID, &c.Title, &c.Description, &c.Points, &c.CategoryID, &c.DifficultyID,
		&c.CreatedAt, &c.UpdatedAt,
		&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt, &cat.UpdatedAt,
		&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt,
	)
	c.Category = &cat
	c.Difficulty = &d
	c.Tags = []model.Tag{}
	c.LearningObjectives = []model.LearningObjective{}
	c.Hints = []model.Hint{}
	return c, err
}

// =========================================================================
// CREATE
// =========================================================================

// CreateChallenge inserts the challenge, its tag links, objectives and hints
// in one transaction. Tags are get-or-created by name.
func (s *Store) CreateChallenge(ctx context.Context, in repository.ChallengeInput) (*model.Challenge, error) {
	var out *model.Challenge
	err := s.withTx(ctx, func(t *txn) error {
		if err := t.requireRow(ctx, "categories", "category", in.CategoryID); err != nil {
			return err
		}
		if err := t.requireRow(ctx, "difficulties", "difficulty", in.DifficultyID); err != nil {
			return err
		}

		id, err := t.insertChallenge(ctx, in)
		if err != nil {
			return err
		}
		out, err = t.challengeWhere(ctx, `c.id = ?`, id)
		return err
	})
	return out, err
}

// insertChallenge writes the challenge row and all children. CategoryID and
// DifficultyID must already exist.
func (t *txn) insertChallenge(ctx context.Context, in repository.ChallengeInput) (int64, error) {
	key, err := t.identifierFor(ctx, challengeSeq, in.ChallengeID)
	if err != nil {
		return 0, err
	}

	ts := now()
	var id int64
	err = t.queryRow(ctx,
		`INSERT INTO challenges (challenge_id, title, description, points, category_id, difficulty_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		key, in.Title, in.Description, in.Points, in.CategoryID, in.DifficultyID, ts, ts,
	).Scan(&id)
	if err != nil {
		if t.s.dialect.isUniqueViolation(err) {
			return 0, apperror.Conflict("challenge", "challenge_id", key)
		}
		return 0, fmt.Errorf("inserting challenge %s: %w", key, err)
	}

	if err := t.setTags(ctx, id, in.Tags); err != nil {
		return 0, err
	}
	if err := t.setTexts(ctx, "learning_objectives", id, in.LearningObjectives); err != nil {
		return 0, err
	}
	if err := t.setTexts(ctx, "hints", id, in.Hints); err != nil {
		return 0, err
	}
	return id, nil
}

// setTags replaces the challenge's tag links with names, creating missing
// tags. Repeated names collapse to one link.
func (t *txn) setTags(ctx context.Context, challengeID int64, names []string) error {
	if _, err := t.exec(ctx, `DELETE FROM challenge_tags WHERE challenge_id = ?`, challengeID); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		tagID, err := t.ensureTag(ctx, name)
		if err != nil {
			return err
		}
		if _, err := t.exec(ctx,
			`INSERT INTO challenge_tags (challenge_id, tag_id) VALUES (?, ?)`, challengeID, tagID,
		); err != nil {
			return fmt.Errorf("linking tag %q: %w", name, err)
		}
	}
	return nil
}

// setTexts replaces the rows of an owned text collection (learning_objectives
// or hints), keeping the given order.
func (t *txn) setTexts(ctx context.Context, table string, challengeID int64, texts []string) error {
	if _, err := t.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE challenge_id = ?`, table), challengeID); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}

	ts := now()
	insert := fmt.Sprintf(`INSERT INTO %s (challenge_id, description, created_at, updated_at) VALUES (?, ?, ?, ?)`, table)
	for _, text := range texts {
		if _, err := t.exec(ctx, insert, challengeID, text, ts, ts); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return nil
}

// =========================================================================
// READ
// =========================================================================

func (s *Store) GetChallenge(ctx context.Context, challengeID string) (*model.Challenge, error) {
	var out *model.Challenge
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		out, err = t.challengeByKey(ctx, challengeID)
		return err
	})
	return out, err
}

func (t *txn) challengeByKey(ctx context.Context, challengeID string) (*model.Challenge, error) {
	c, err := t.challengeWhere(ctx, `c.challenge_id = ?`, challengeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("challenge", challengeID)
	}
	return c, err
}

// challengeWhere loads one challenge with its children. It returns
// sql.ErrNoRows unwrapped when nothing matches.
func (t *txn) challengeWhere(ctx context.Context, where string, args ...any) (*model.Challenge, error) {
	c, err := scanChallenge(t.queryRow(ctx, challengeSelect+` WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("getting challenge: %w", err)
	}

	list := []model.Challenge{c}
	if err := t.loadChallengeChildren(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// challengePK resolves a CHAL_ key to the internal id.
func (t *txn) challengePK(ctx context.Context, challengeID string) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `SELECT id FROM challenges WHERE challenge_id = ?`, challengeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperror.NotFound("challenge", challengeID)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving challenge %s: %w", challengeID, err)
	}
	return id, nil
}

// loadChallengeChildren fills Tags, LearningObjectives and Hints for every
// challenge in list with three batched queries.
func (t *txn) loadChallengeChildren(ctx context.Context, list []model.Challenge) error {
	if len(list) == 0 {
		return nil
	}

	index := make(map[int64]*model.Challenge, len(list))
	args := make([]any, len(list))
	for i := range list {
		index[list[i].ID] = &list[i]
		args[i] = list[i].ID
	}
	in := placeholders(len(list))

	rows, err := t.query(ctx,
		`SELECT ct.challenge_id, tg.id, tg.name, tg.created_at, tg.updated_at
		 FROM challenge_tags ct JOIN tags tg ON tg.id = ct.tag_id
		 WHERE ct.challenge_id IN (`+in+`) ORDER BY ct.id`, args...)
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}
	for rows.Next() {
		var owner int64
		var tag model.Tag
		if err := rows.Scan(&owner, &tag.ID, &tag.Name, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scanning tag: %w", err)
		}
		index[owner].Tags = append(index[owner].Tags, tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range []string{"learning_objectives", "hints"} {
		rows, err := t.query(ctx,
			fmt.Sprintf(`SELECT id, challenge_id, description, created_at, updated_at
			 FROM %s WHERE challenge_id IN (%s) ORDER BY id`, table, in), args...)
		if err != nil {
			return fmt.Errorf("loading %s: %w", table, err)
		}
		for rows.Next() {
			var (
				id, owner int64
				text      string
				cAt, uAt  time.Time
			)
			if err := rows.Scan(&id, &owner, &text, &cAt, &uAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s: %w", table, err)
			}
			c := index[owner]
			if table == "hints" {
				c.Hints = append(c.Hints, model.Hint{ID: id, ChallengeID: owner, Description: text, CreatedAt: cAt, UpdatedAt: uAt})
			} else {
				c.LearningObjectives = append(c.LearningObjectives, model.LearningObjective{ID: id, ChallengeID: owner, Description: text, CreatedAt: cAt, UpdatedAt: uAt})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// ListChallenges applies every filter with AND and orders by creation.
//
// Each requested tag adds its own EXISTS clause, so a challenge must carry
// all of them. A tag name nobody uses matches nothing.
func (s *Store) ListChallenges(ctx context.Context, f repository.ChallengeFilter, opts repository.ListOptions) ([]model.Challenge, error) {
	var (
		conds []string
		args  []any
	)
	if f.CategoryID != nil {
		conds = append(conds, `c.category_id = ?`)
		args = append(args, *f.CategoryID)
	}
	if f.DifficultyID != nil {
		conds = append(conds, `c.difficulty_id = ?`)
		args = append(args, *f.DifficultyID)
	}
	if f.MinPoints != nil {
		conds = append(conds, `c.points >= ?`)
		args = append(args, *f.MinPoints)
	}
	if f.MaxPoints != nil {
		conds = append(conds, `c.points <= ?`)
		args = append(args, *f.MaxPoints)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		conds = append(conds, `(LOWER(c.title) LIKE LOWER(?) ESCAPE '\' OR LOWER(c.description) LIKE LOWER(?) ESCAPE '\')`)
		args = append(args, like, like)
	}
	for _, tag := range f.Tags {
		conds = append(conds, `EXISTS (SELECT 1 FROM challenge_tags ct JOIN tags tg ON tg.id = ct.tag_id
			WHERE ct.challenge_id = c.id AND tg.name = ?)`)
		args = append(args, tag)
	}

	query := challengeSelect
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	limit, offset := clampList(opts)
	query += ` ORDER BY c.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	out := []model.Challenge{}
	err := s.withTx(ctx, func(t *txn) error {
		rows, err := t.query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("listing challenges: %w", err)
		}
		for rows.Next() {
			c, err := scanChallenge(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scanning challenge: %w", err)
			}
			out = append(out, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		return t.loadChallengeChildren(ctx, out)
	})
	return out, err
}

// =========================================================================
// UPDATE
// =========================================================================

// UpdateChallenge applies the non-nil fields of patch. A collection present
// in the patch replaces the stored one wholesale.
func (s *Store) UpdateChallenge(ctx context.Context, challengeID string, patch repository.ChallengePatch) (*model.Challenge, error) {
	var out *model.Challenge
	err := s.withTx(ctx, func(t *txn) error {
		id, err := t.challengePK(ctx, challengeID)
		if err != nil {
			return err
		}

		sets := []string{`updated_at = ?`}
		args := []any{now()}

		if patch.Title != nil {
			sets = append(sets, `title = ?`)
			args = append(args, *patch.Title)
		}
		if patch.Description != nil {
			sets = append(sets, `description = ?`)
			args = append(args, *patch.Description)
		}
		if patch.Points != nil {
			sets = append(sets, `points = ?`)
			args = append(args, *patch.Points)
		}
		if patch.CategoryID != nil {
			if err := t.requireRow(ctx, "categories", "category", *patch.CategoryID); err != nil {
				return err
			}
			sets = append(sets, `category_id = ?`)
			args = append(args, *patch.CategoryID)
		}
		if patch.DifficultyID != nil {
			if err := t.requireRow(ctx, "difficulties", "difficulty", *patch.DifficultyID); err != nil {
				return err
			}
			sets = append(sets, `difficulty_id = ?`)
			args = append(args, *patch.DifficultyID)
		}

		args = append(args, id)
		if _, err := t.exec(ctx, `UPDATE challenges SET `+strings.Join(sets, `, `)+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("updating challenge %s: %w", challengeID, err)
		}

		if patch.Tags != nil {
			if err := t.setTags(ctx, id, *patch.Tags); err != nil {
				return err
			}
		}
		if patch.LearningObjectives != nil {
			if err := t.setTexts(ctx, "learning_objectives", id, *patch.LearningObjectives); err != nil {
				return err
			}
		}
		if patch.Hints != nil {
			if err := t.setTexts(ctx, "hints", id, *patch.Hints); err != nil {
				return err
			}
		}

		out, err = t.challengeWhere(ctx, `c.id = ?`, id)
		return err
	})
	return out, err
}

// =========================================================================
// DELETE
// =========================================================================

// DeleteChallenge removes the challenge and everything it owns, returning
// the challenge as it was. A challenge that conversations still reference is
// refused with a Conflict.
func (s *Store) DeleteChallenge(ctx context.Context, challengeID string) (*model.Challenge, error) {
	var out *model.Challenge
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		out, err = t.challengeByKey(ctx, challengeID)
		if err != nil {
			return err
		}

		var refs int
		if err := t.queryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE challenge_id = ?`, out.ID).Scan(&refs); err != nil {
			return fmt.Errorf("counting conversations for %s: %w", challengeID, err)
		}
		if refs > 0 {
			return apperror.InUse("challenge", challengeID, "conversations")
		}

		for _, table := range []string{"challenge_tags", "learning_objectives", "hints"} {
			if _, err := t.exec(ctx, `DELETE FROM `+table+` WHERE challenge_id = ?`, out.ID); err != nil {
				return fmt.Errorf("deleting %s of %s: %w", table, challengeID, err)
			}
		}
		if _, err := t.exec(ctx, `DELETE FROM challenges WHERE id = ?`, out.ID); err != nil {
			return fmt.Errorf("deleting challenge %s: %w", challengeID, err)
		}
		return nil
	})
	return out, err
}

// ListConversationsByChallenge returns the conversations about challengeID,
// with their posts.
func (s *Store) ListConversationsByChallenge(ctx context.Context, challengeID string) ([]model.Conversation, error) {
	var out []model.Conversation
	err := s.withTx(ctx, func(t *txn) error {
		id, err := t.challengePK(ctx, challengeID)
		if err != nil {
			return err
		}
		out, err = t.conversations(ctx, `v.challenge_id = ? ORDER BY v.id`, id)
		return err
	})
	return out, err
}
