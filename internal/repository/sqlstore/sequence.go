package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/identifier"
)

// =========================================================================
// IDENTIFIER COUNTERS
// =========================================================================
//
// The next CHAL_/CONV_ suffix comes from a counter row, advanced with
//
//	UPDATE id_sequences SET last_value = last_value + 1 WHERE name = ? RETURNING last_value
//
// in the same transaction as the INSERT that uses it. The UPDATE takes the
// row lock, so concurrent creators queue on it and each one gets a distinct
// value. If the INSERT fails the increment rolls back with it.
//
// Counters never go down. Deleting the newest challenge does not free its
// suffix for reuse.

type sequence struct {
	name   string
	prefix identifier.Prefix
	table  string
	column string
}

var (
	challengeSeq    = sequence{name: "challenge", prefix: identifier.Challenge, table: "challenges", column: "challenge_id"}
	conversationSeq = sequence{name: "conversation", prefix: identifier.Conversation, table: "conversations", column: "identifier"}

	sequences = []sequence{challengeSeq, conversationSeq}
)

// allocate returns the next identifier in seq's namespace.
func (t *txn) allocate(ctx context.Context, seq sequence) (string, error) {
	var n int64
	err := t.queryRow(ctx,
		`UPDATE id_sequences SET last_value = last_value + 1 WHERE name = ? RETURNING last_value`,
		seq.name,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s counter is missing", seq.name)
	}
	if err != nil {
		return "", fmt.Errorf("advancing %s counter: %w", seq.name, err)
	}

	t.s.metrics.IdentifierAllocated(string(seq.prefix))
	return identifier.Format(seq.prefix, n), nil
}

// claim reserves a caller-supplied identifier. It fails with Conflict when
// the identifier is taken and raises the counter past it so later
// allocations skip it.
func (t *txn) claim(ctx context.Context, seq sequence, id string) error {
	n, err := identifier.Parse(seq.prefix, id)
	if err != nil {
		return apperror.ValidationFailed(seq.column, err.Error())
	}

	var exists int
	err = t.queryRow(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = ?`, seq.table, seq.column), id,
	).Scan(&exists)
	switch {
	case err == nil:
		return apperror.Conflict(seq.name, seq.column, id)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("checking %s %s: %w", seq.name, id, err)
	}

	return t.raise(ctx, seq, n)
}

// raise lifts the counter to at least n.
func (t *txn) raise(ctx context.Context, seq sequence, n int64) error {
	_, err := t.exec(ctx,
		`UPDATE id_sequences SET last_value = ? WHERE name = ? AND last_value < ?`,
		n, seq.name, n,
	)
	if err != nil {
		return fmt.Errorf("raising %s counter: %w", seq.name, err)
	}
	return nil
}

// identifierFor allocates when id is empty and claims it otherwise.
func (t *txn) identifierFor(ctx context.Context, seq sequence, id string) (string, error) {
	if id == "" {
		return t.allocate(ctx, seq)
	}
	if err := t.claim(ctx, seq, id); err != nil {
		return "", err
	}
	return id, nil
}

// reconcileSequences raises each counter to the suffix of the row with the
// highest primary key. This covers rows written without going through the
// counter, such as a database restored from an older dump. A malformed
// identifier in that row is fatal: allocation cannot continue from it.
func (s *Store) reconcileSequences(ctx context.Context) error {
	return s.withTx(ctx, func(t *txn) error {
		for _, seq := range sequences {
			var last string
			err := t.queryRow(ctx,
				fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT 1`, seq.column, seq.table),
			).Scan(&last)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("reading last %s: %w", seq.name, err)
			}

			n, err := identifier.Parse(seq.prefix, last)
			if err != nil {
				return fmt.Errorf("last %s: %w", seq.name, err)
			}
			if err := t.raise(ctx, seq, n); err != nil {
				return err
			}
			s.logger.Info("identifier counter reconciled",
				slog.String("sequence", seq.name),
				slog.String("lastRow", last),
			)
		}
		return nil
	})
}
