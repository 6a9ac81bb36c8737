package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
)

// =========================================================================
// CATEGORIES
// =========================================================================

const categoryColumns = `id, name, description, created_at, updated_at`

func (s *Store) CreateCategory(ctx context.Context, category *model.Category) error {
	return s.withTx(ctx, func(t *txn) error {
		ts := now()
		err := t.queryRow(ctx,
			`INSERT INTO categories (name, description, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`,
			category.Name, category.Description, ts, ts,
		).Scan(&category.ID)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return apperror.Conflict("category", "name", category.Name)
			}
			return fmt.Errorf("inserting category: %w", err)
		}
		category.CreatedAt = ts
		category.UpdatedAt = ts
		return nil
	})
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c *model.Category
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		c, err = t.categoryByID(ctx, id)
		return err
	})
	return c, err
}

func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	out := []model.Category{}
	err := s.withTx(ctx, func(t *txn) error {
		rows, err := t.query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
		if err != nil {
			return fmt.Errorf("listing categories: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var c model.Category
			if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
				return fmt.Errorf("scanning category: %w", err)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) EnsureCategory(ctx context.Context, name string) (*model.Category, error) {
	var c *model.Category
	err := s.withTx(ctx, func(t *txn) error {
		id, err := t.ensureCategory(ctx, name)
		if err != nil {
			return err
		}
		c, err = t.categoryByID(ctx, id)
		return err
	})
	return c, err
}

func (t *txn) ensureCategory(ctx context.Context, name string) (int64, error) {
	return t.ensureNamed(ctx, "categories", "name", name, func() (string, []any, error) {
		ts := now()
		return `INSERT INTO categories (name, description, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING id`,
			[]any{name, "Category for " + name, ts, ts}, nil
	})
}

func (t *txn) categoryByID(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := t.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return &c, nil
}

// =========================================================================
// DIFFICULTIES
// =========================================================================

func (s *Store) CreateDifficulty(ctx context.Context, difficulty *model.Difficulty) error {
	return s.withTx(ctx, func(t *txn) error {
		ts := now()
		err := t.queryRow(ctx,
			`INSERT INTO difficulties (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
			difficulty.Name, ts, ts,
		).Scan(&difficulty.ID)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return apperror.Conflict("difficulty", "name", difficulty.Name)
			}
			return fmt.Errorf("inserting difficulty: %w", err)
		}
		difficulty.CreatedAt = ts
		difficulty.UpdatedAt = ts
		return nil
	})
}

func (s *Store) GetDifficulty(ctx context.Context, id int64) (*model.Difficulty, error) {
	var d *model.Difficulty
	err := s.withTx(ctx, func(t *txn) error {
		var err error
		d, err = t.difficultyByID(ctx, id)
		return err
	})
	return d, err
}

func (s *Store) ListDifficulties(ctx context.Context) ([]model.Difficulty, error) {
	out := []model.Difficulty{}
	err := s.withTx(ctx, func(t *txn) error {
		rows, err := t.query(ctx, `SELECT id, name, created_at, updated_at FROM difficulties ORDER BY id`)
		if err != nil {
			return fmt.Errorf("listing difficulties: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var d model.Difficulty
			if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
				return fmt.Errorf("scanning difficulty: %w", err)
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) EnsureDifficulty(ctx context.Context, name string) (*model.Difficulty, error) {
	var d *model.Difficulty
	err := s.withTx(ctx, func(t *txn) error {
		id, err := t.ensureDifficulty(ctx, name)
		if err != nil {
			return err
		}
		d, err = t.difficultyByID(ctx, id)
		return err
	})
	return d, err
}

func (t *txn) ensureDifficulty(ctx context.Context, name string) (int64, error) {
	return t.ensureNamed(ctx, "difficulties", "name", name, func() (string, []any, error) {
		ts := now()
		return `INSERT INTO difficulties (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
			[]any{name, ts, ts}, nil
	})
}

func (t *txn) difficultyByID(ctx context.Context, id int64) (*model.Difficulty, error) {
	var d model.Difficulty
	err := t.queryRow(ctx, `SELECT id, name, created_at, updated_at FROM difficulties WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("difficulty", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("getting difficulty: %w", err)
	}
	return &d, nil
}

// =========================================================================
// TAGS
// =========================================================================

func (s *Store) ListTags(ctx context.Context) ([]model.Tag, error) {
	out := []model.Tag{}
	err := s.withTx(ctx, func(t *txn) error {
		rows, err := t.query(ctx, `SELECT id, name, created_at, updated_at FROM tags ORDER BY id`)
		if err != nil {
			return fmt.Errorf("listing tags: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var tag model.Tag
			if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
				return fmt.Errorf("scanning tag: %w", err)
			}
			out = append(out, tag)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) EnsureTag(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := s.withTx(ctx, func(t *txn) error {
		id, err := t.ensureTag(ctx, name)
		if err != nil {
			return err
		}
		return t.queryRow(ctx, `SELECT id, name, created_at, updated_at FROM tags WHERE id = ?`, id).
			Scan(&tag.ID, &tag.Name, &tag.CreatedAt, &tag.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (t *txn) ensureTag(ctx context.Context, name string) (int64, error) {
	return t.ensureNamed(ctx, "tags", "name", name, func() (string, []any, error) {
		ts := now()
		return `INSERT INTO tags (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
			[]any{name, ts, ts}, nil
	})
}
