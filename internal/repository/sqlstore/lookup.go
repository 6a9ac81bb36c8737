package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/challenge-hub/internal/apperror"
)

// insertBuilder returns the INSERT ... RETURNING id statement and its
// arguments. It is only called when the row is missing.
type insertBuilder func() (query string, args []any, err error)

// ensureNamed returns the id of the row in table whose key column equals
// value, inserting it if absent.
//
// GET-OR-CREATE UNDER CONCURRENCY:
//
//	SELECT id        → found: done
//	SAVEPOINT
//	INSERT RETURNING → ok: RELEASE, done
//	unique violation → ROLLBACK TO SAVEPOINT, SELECT the winner's row
//
// The savepoint keeps the surrounding transaction usable after the failed
// INSERT (Postgres aborts the whole transaction otherwise).
func (t *txn) ensureNamed(ctx context.Context, table, column, value string, build insertBuilder) (int64, error) {
	lookup := fmt.Sprintf(`SELECT id FROM %s WHERE %s = ?`, table, column)

	var id int64
	err := t.queryRow(ctx, lookup, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up %s %q: %w", table, value, err)
	}

	insert, args, err := build()
	if err != nil {
		return 0, err
	}

	savepoint := "ensure_" + table
	if _, err := t.exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return 0, fmt.Errorf("savepoint: %w", err)
	}

	err = t.queryRow(ctx, insert, args...).Scan(&id)
	if err == nil {
		if _, err := t.exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return 0, fmt.Errorf("releasing savepoint: %w", err)
		}
		return id, nil
	}

	if _, rbErr := t.exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
		return 0, fmt.Errorf("rolling back to savepoint: %w", rbErr)
	}
	if _, relErr := t.exec(ctx, "RELEASE SAVEPOINT "+savepoint); relErr != nil {
		return 0, fmt.Errorf("releasing savepoint: %w", relErr)
	}
	if !t.s.dialect.isUniqueViolation(err) {
		return 0, fmt.Errorf("inserting %s %q: %w", table, value, err)
	}

	t.s.logger.Debug("lost get-or-create race, re-reading", "table", table, "value", value)
	t.s.metrics.LookupRetried(table)

	if err := t.queryRow(ctx, lookup, value).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-reading %s %q: %w", table, value, err)
	}
	return id, nil
}

// requireRow returns NotFound(resource, id) unless table has a row with id.
func (t *txn) requireRow(ctx context.Context, table, resource string, id int64) error {
	var one int
	err := t.queryRow(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, strconv.FormatInt(id, 10))
	}
	if err != nil {
		return fmt.Errorf("checking %s %d: %w", resource, id, err)
	}
	return nil
}
