// Package seed bulk-loads challenges and support conversations from data
// files. Both files may be JSON or YAML.
//
//	{"coding_challenges":     [{challenge_id, title, description, category,
//	                            difficulty, points, tags, learning_objectives, hints}]}
//	{"support_conversations": [{identifier, topic, category, challenge_id,
//	                            posts: [{post_id, user, content, timestamp}]}]}
//
// Loading is skipped while the database already holds challenges or
// conversations, unless forced. Each record is stored in its own unit of
// work; a bad record is logged, counted and skipped.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"gopkg.in/yaml.v3"

	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// Files names the two seed files. An empty path is skipped.
type Files struct {
	Challenges    string
	Conversations string
}

// Report summarises one Load.
type Report struct {
	Skipped bool

	Challenges      int
	ChallengeErrors int

	Conversations      int
	Posts              int
	ConversationErrors int
}

type Loader struct {
	repo      repository.SeedRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

func NewLoader(repo repository.SeedRepository, passwords *auth.PasswordService, logger *slog.Logger) *Loader {
	return &Loader{
		repo:      repo,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// Load imports files. With force, existing conversations and then
// existing challenges are purged first.
//
// Only store-level failures (counting, purging) and unreadable files are
// returned as errors.
func (l *Loader) Load(ctx context.Context, files Files, force bool) (Report, error) {
	var report Report

	challenges, err := l.repo.CountChallenges(ctx)
	if err != nil {
		return report, err
	}
	conversations, err := l.repo.CountConversations(ctx)
	if err != nil {
		return report, err
	}

	if challenges > 0 || conversations > 0 {
		if !force {
			l.logger.Info("seed data already loaded, skipping",
				slog.Int("challenges", challenges),
				slog.Int("conversations", conversations),
			)
			report.Skipped = true
			return report, nil
		}

		l.logger.Warn("purging existing data before reload",
			slog.Int("challenges", challenges),
			slog.Int("conversations", conversations),
		)
		if err := l.repo.PurgeConversations(ctx); err != nil {
			return report, fmt.Errorf("purging conversations: %w", err)
		}
		if err := l.repo.PurgeChallenges(ctx); err != nil {
			return report, fmt.Errorf("purging challenges: %w", err)
		}
	}

	var cf challengeFile
	found, err := l.readFile(files.Challenges, &cf)
	if err != nil {
		return report, err
	}
	if found {
		if cf.Challenges == nil {
			l.logger.Warn("no coding_challenges in file", slog.String("file", files.Challenges))
		}
		l.loadChallenges(ctx, cf.Challenges, &report)
	}

	var vf conversationFile
	found, err = l.readFile(files.Conversations, &vf)
	if err != nil {
		return report, err
	}
	if found {
		if vf.Conversations == nil {
			l.logger.Warn("no support_conversations in file", slog.String("file", files.Conversations))
		}
		l.loadConversations(ctx, vf.Conversations, &report)
	}

	l.logger.Info("seed loading completed",
		slog.Int("challenges", report.Challenges),
		slog.Int("challengeErrors", report.ChallengeErrors),
		slog.Int("conversations", report.Conversations),
		slog.Int("posts", report.Posts),
		slog.Int("conversationErrors", report.ConversationErrors),
	)
	return report, nil
}

// readFile decodes path into dst. A missing file is reported as not found,
// not as an error. yaml.v3 reads JSON as the YAML subset it is.
func (l *Loader) readFile(path string, dst any) (bool, error) {
	if path == "" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("seed file not found", slog.String("file", path))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	l.logger.Info("loaded seed file", slog.String("file", path))
	return true, nil
}

func (l *Loader) loadChallenges(ctx context.Context, records []challengeRecord, report *Report) {
	for _, rec := range records {
		log := l.logger.With(slog.String("challengeID", rec.ChallengeID))

		if strings.TrimSpace(rec.Category) == "" || strings.TrimSpace(rec.Difficulty) == "" {
			log.Warn("skipping challenge without category or difficulty")
			report.ChallengeErrors++
			continue
		}
		if rec.Points.invalid != "" {
			log.Warn("invalid points value, using 0", slog.String("points", rec.Points.invalid))
		}

		c, err := l.repo.ImportChallenge(ctx, repository.ChallengeImport{
			ChallengeID:        strings.TrimSpace(rec.ChallengeID),
			Title:              rec.Title,
			Description:        rec.Description,
			Points:             rec.Points.value,
			Category:           strings.TrimSpace(rec.Category),
			Difficulty:         strings.TrimSpace(rec.Difficulty),
			Tags:               rec.Tags,
			LearningObjectives: rec.LearningObjectives,
			Hints:              rec.Hints,
		})
		if err != nil {
			log.Error("importing challenge failed", slog.String("error", err.Error()))
			report.ChallengeErrors++
			continue
		}

		log.Debug("imported challenge", slog.String("title", c.Title))
		report.Challenges++
	}
}

func (l *Loader) loadConversations(ctx context.Context, records []conversationRecord, report *Report) {
	for _, rec := range records {
		log := l.logger.With(slog.String("identifier", rec.Identifier))

		if strings.TrimSpace(rec.ChallengeID) == "" || strings.TrimSpace(rec.Category) == "" {
			log.Warn("skipping conversation without challenge_id or category")
			report.ConversationErrors++
			continue
		}

		in := repository.ConversationImport{
			Identifier:  strings.TrimSpace(rec.Identifier),
			Topic:       rec.Topic,
			Category:    strings.TrimSpace(rec.Category),
			ChallengeID: strings.TrimSpace(rec.ChallengeID),
		}
		for _, p := range rec.Posts {
			if strings.TrimSpace(p.User) == "" {
				log.Warn("skipping post without user", slog.Int("postID", p.PostID))
				continue
			}
			in.Posts = append(in.Posts, repository.PostImport{
				PostID:    p.PostID,
				Username:  strings.TrimSpace(p.User),
				Content:   p.Content,
				Timestamp: l.parseTimestamp(log, p.Timestamp),
			})
		}

		conv, err := l.repo.ImportConversation(ctx, in, l.newUser)
		if err != nil {
			log.Error("importing conversation failed", slog.String("error", err.Error()))
			report.ConversationErrors++
			continue
		}

		log.Debug("imported conversation", slog.Int("posts", len(conv.Posts)))
		report.Conversations++
		report.Posts += len(conv.Posts)
	}
}

// timestampLayouts are tried in order. The zone-less form is read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (l *Loader) parseTimestamp(log *slog.Logger, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	log.Warn("invalid post timestamp, using current time", slog.String("timestamp", raw))
	return l.now()
}

// newUser builds an account for a post author seen for the first time.
// The password is random and never shown, so the account cannot log in.
func (l *Loader) newUser(username string) (*model.User, error) {
	hash, err := l.passwords.Hash(xid.New().String())
	if err != nil {
		return nil, err
	}
	return &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsSupport:    isSupportName(username),
	}, nil
}

func isSupportName(username string) bool {
	name := strings.ToLower(username)
	for _, marker := range []string{"support", "team", "helper"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// =========================================================================
// FILE FORMAT
// =========================================================================

type challengeFile struct {
	Challenges []challengeRecord `yaml:"coding_challenges"`
}

type challengeRecord struct {
	ChallengeID        string   `yaml:"challenge_id"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	Category           string   `yaml:"category"`
	Difficulty         string   `yaml:"difficulty"`
	Points             points   `yaml:"points"`
	Tags               []string `yaml:"tags"`
	LearningObjectives []string `yaml:"learning_objectives"`
	Hints              []string `yaml:"hints"`
}

type conversationFile struct {
	Conversations []conversationRecord `yaml:"support_conversations"`
}

type conversationRecord struct {
	Identifier  string       `yaml:"identifier"`
	Topic       string       `yaml:"topic"`
	Category    string       `yaml:"category"`
	ChallengeID string       `yaml:"challenge_id"`
	Posts       []postRecord `yaml:"posts"`
}

type postRecord struct {
	PostID    int    `yaml:"post_id"`
	User      string `yaml:"user"`
	Content   string `yaml:"content"`
	Timestamp string `yaml:"timestamp"`
}

// points accepts 50, 50.0 and "50". Anything else decodes to 0 and keeps
// the raw text in invalid so the loader can warn about it.
type points struct {
	value   int
	invalid string
}

func (p *points) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		p.invalid = fmt.Sprintf("(%s)", node.ShortTag())
		return nil
	}

	raw := strings.TrimSpace(node.Value)
	if v, err := strconv.Atoi(raw); err == nil {
		p.value = v
		return nil
	}
	if node.ShortTag() == "!!float" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			p.value = int(f)
			return nil
		}
	}
	p.invalid = node.Value
	return nil
}
