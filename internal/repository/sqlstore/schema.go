package sqlstore

import (
	"context"
	"fmt"
)

// schema is applied on every start. Each statement is idempotent.
// {{...}} tokens are replaced per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            {{PK}},
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_support    {{BOOL}} NOT NULL DEFAULT {{FALSE}},
		created_at    {{TIMESTAMP}} NOT NULL,
		updated_at    {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id          {{PK}},
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  {{TIMESTAMP}} NOT NULL,
		updated_at  {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS difficulties (
		id         {{PK}},
		name       TEXT NOT NULL UNIQUE,
		created_at {{TIMESTAMP}} NOT NULL,
		updated_at {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id         {{PK}},
		name       TEXT NOT NULL UNIQUE,
		created_at {{TIMESTAMP}} NOT NULL,
		updated_at {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS challenges (
		id            {{PK}},
		challenge_id  TEXT NOT NULL UNIQUE,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL,
		points        INTEGER NOT NULL DEFAULT 0,
		category_id   BIGINT NOT NULL REFERENCES categories(id),
		difficulty_id BIGINT NOT NULL REFERENCES difficulties(id),
		created_at    {{TIMESTAMP}} NOT NULL,
		updated_at    {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS challenge_tags (
		id           {{PK}},
		challenge_id BIGINT NOT NULL REFERENCES challenges(id),
		tag_id       BIGINT NOT NULL REFERENCES tags(id),
		UNIQUE (challenge_id, tag_id)
	)`,

	`CREATE TABLE IF NOT EXISTS learning_objectives (
		id           {{PK}},
		challenge_id BIGINT NOT NULL REFERENCES challenges(id),
		description  TEXT NOT NULL,
		created_at   {{TIMESTAMP}} NOT NULL,
		updated_at   {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS hints (
		id           {{PK}},
		challenge_id BIGINT NOT NULL REFERENCES challenges(id),
		description  TEXT NOT NULL,
		created_at   {{TIMESTAMP}} NOT NULL,
		updated_at   {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id           {{PK}},
		identifier   TEXT NOT NULL UNIQUE,
		topic        TEXT NOT NULL,
		category_id  BIGINT NOT NULL REFERENCES categories(id),
		challenge_id BIGINT NOT NULL REFERENCES challenges(id),
		created_at   {{TIMESTAMP}} NOT NULL,
		updated_at   {{TIMESTAMP}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS posts (
		id              {{PK}},
		post_id         INTEGER NOT NULL,
		conversation_id BIGINT NOT NULL REFERENCES conversations(id),
		user_id         BIGINT NOT NULL REFERENCES users(id),
		content         TEXT NOT NULL,
		timestamp       {{TIMESTAMP}} NOT NULL,
		created_at      {{TIMESTAMP}} NOT NULL,
		updated_at      {{TIMESTAMP}} NOT NULL,
		UNIQUE (conversation_id, post_id)
	)`,

	// One row per identifier namespace; last_value only ever grows.
	`CREATE TABLE IF NOT EXISTS id_sequences (
		name       TEXT PRIMARY KEY,
		last_value BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_challenges_category ON challenges(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_challenges_difficulty ON challenges(difficulty_id)`,
	`CREATE INDEX IF NOT EXISTS idx_challenge_tags_tag ON challenge_tags(tag_id)`,
	`CREATE INDEX IF NOT EXISTS idx_objectives_challenge ON learning_objectives(challenge_id)`,
	`CREATE INDEX IF NOT EXISTS idx_hints_challenge ON hints(challenge_id)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_challenge ON conversations(challenge_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id)`,
}

// migrate creates the tables and seeds one counter row per namespace.
//
// CREATE TABLE IF NOT EXISTS is safe to run repeatedly. A production system
// with evolving columns would want versioned migrations instead.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.conn.ExecContext(ctx, s.dialect.types.Replace(stmt)); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	for _, seq := range sequences {
		_, err := s.conn.ExecContext(ctx,
			s.dialect.rebind(`INSERT INTO id_sequences (name, last_value) VALUES (?, 0) ON CONFLICT (name) DO NOTHING`),
			seq.name,
		)
		if err != nil {
			return fmt.Errorf("creating %s counter: %w", seq.name, err)
		}
	}
	return nil
}
