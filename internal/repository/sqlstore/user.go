package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

const userColumns = `id, username, email, password_hash, is_support, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsSupport, &u.CreatedAt, &u.UpdatedAt)
}

// CreateUser inserts a new user and fills in ID and timestamps.
//
// Username and email are checked up front so the Conflict names the field
// that collided. The UNIQUE constraints still catch a concurrent duplicate.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.withTx(ctx, func(t *txn) error {
		if err := t.checkUserUnique(ctx, user.Username, user.Email, 0); err != nil {
			return err
		}

		ts := now()
		err := t.queryRow(ctx,
			`INSERT INTO users (username, email, password_hash, is_support, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			user.Username, user.Email, user.PasswordHash, user.IsSupport, ts, ts,
		).Scan(&user.ID)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return apperror.Conflict("user", "username", user.Username)
			}
			return fmt.Errorf("inserting user %q: %w", user.Username, err)
		}
		user.CreatedAt = ts
		user.UpdatedAt = ts
		return nil
	})
}

// checkUserUnique returns Conflict if username or email belongs to a user
// other than exceptID.
func (t *txn) checkUserUnique(ctx context.Context, username, email string, exceptID int64) error {
	checks := []struct {
		column string
		value  string
	}{
		{"username", username},
		{"email", email},
	}
	for _, c := range checks {
		var id int64
		err := t.queryRow(ctx, fmt.Sprintf(`SELECT id FROM users WHERE %s = ?`, c.column), c.value).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue
		case err != nil:
			return fmt.Errorf("checking %s: %w", c.column, err)
		case id != exceptID:
			return apperror.Conflict("user", c.column, c.value)
		}
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.withTx(ctx, func(t *txn) error {
		err := scanUser(t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id), &u)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		if err != nil {
			return fmt.Errorf("getting user %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.withTx(ctx, func(t *txn) error {
		err := scanUser(t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username), &u)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", username)
		}
		if err != nil {
			return fmt.Errorf("getting user %q: %w", username, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser writes username, email, password hash and support flag for
// user.ID. The caller passes the full merged record.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	return s.withTx(ctx, func(t *txn) error {
		if err := t.requireRow(ctx, "users", "user", user.ID); err != nil {
			return err
		}
		if err := t.checkUserUnique(ctx, user.Username, user.Email, user.ID); err != nil {
			return err
		}

		user.UpdatedAt = now()
		_, err := t.exec(ctx,
			`UPDATE users SET username = ?, email = ?, password_hash = ?, is_support = ?, updated_at = ? WHERE id = ?`,
			user.Username, user.Email, user.PasswordHash, user.IsSupport, user.UpdatedAt, user.ID,
		)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return apperror.Conflict("user", "username", user.Username)
			}
			return fmt.Errorf("updating user %d: %w", user.ID, err)
		}
		return nil
	})
}

func (s *Store) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampList(opts)

	out := []model.User{}
	err := s.withTx(ctx, func(t *txn) error {
		rows, err := t.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u model.User
			if err := scanUser(rows, &u); err != nil {
				return fmt.Errorf("scanning user: %w", err)
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

// ListPostsByUser returns every post the user authored, oldest first.
func (s *Store) ListPostsByUser(ctx context.Context, userID int64) ([]model.Post, error) {
	var out []model.Post
	err := s.withTx(ctx, func(t *txn) error {
		if err := t.requireRow(ctx, "users", "user", userID); err != nil {
			return err
		}
		var err error
		out, err = t.posts(ctx, `p.user_id = ?`, userID)
		return err
	})
	return out, err
}
