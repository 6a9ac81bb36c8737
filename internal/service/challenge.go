package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/identifier"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// ChallengeService validates challenge aggregates before they reach storage.
// Storage owns identifier allocation and the all-or-nothing child writes.
type ChallengeService struct {
	repo   repository.ChallengeRepository
	logger *slog.Logger
}

func NewChallengeService(repo repository.ChallengeRepository, logger *slog.Logger) *ChallengeService {
	return &ChallengeService{repo: repo, logger: logger}
}

// Create validates in and stores the challenge with its tags, learning
// objectives and hints. An empty ChallengeID is allocated by storage.
func (s *ChallengeService) Create(ctx context.Context, in repository.ChallengeInput) (*model.Challenge, error) {
	var err error

	in.ChallengeID = strings.TrimSpace(in.ChallengeID)
	if in.ChallengeID != "" {
		if err := validateChallengeID(in.ChallengeID); err != nil {
			return nil, err
		}
	}
	if in.Title, err = validateTitle(in.Title); err != nil {
		return nil, err
	}
	if in.Description, err = validateDescription(in.Description); err != nil {
		return nil, err
	}
	if err := checkNonNegative("points", in.Points); err != nil {
		return nil, err
	}
	if in.Tags, err = checkTags(in.Tags); err != nil {
		return nil, err
	}
	if in.LearningObjectives, err = checkItems("learning_objectives", in.LearningObjectives); err != nil {
		return nil, err
	}
	if in.Hints, err = checkItems("hints", in.Hints); err != nil {
		return nil, err
	}

	challenge, err := s.repo.CreateChallenge(ctx, in)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to create challenge",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating challenge: %w", err)
	}

	s.logger.Info("challenge created",
		slog.String("challengeID", challenge.ChallengeID),
		slog.Int("tags", len(challenge.Tags)),
	)
	return challenge, nil
}

func (s *ChallengeService) Get(ctx context.Context, challengeID string) (*model.Challenge, error) {
	return s.repo.GetChallenge(ctx, challengeID)
}

// Update applies patch. Fields left nil are unchanged; a non-nil collection
// replaces the stored one entirely.
func (s *ChallengeService) Update(ctx context.Context, challengeID string, patch repository.ChallengePatch) (*model.Challenge, error) {
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc, err := validateDescription(*patch.Description)
		if err != nil {
			return nil, err
		}
		patch.Description = &desc
	}
	if patch.Points != nil {
		if err := checkNonNegative("points", *patch.Points); err != nil {
			return nil, err
		}
	}
	if patch.Tags != nil {
		tags, err := checkTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		patch.Tags = &tags
	}
	if patch.LearningObjectives != nil {
		items, err := checkItems("learning_objectives", *patch.LearningObjectives)
		if err != nil {
			return nil, err
		}
		patch.LearningObjectives = &items
	}
	if patch.Hints != nil {
		items, err := checkItems("hints", *patch.Hints)
		if err != nil {
			return nil, err
		}
		patch.Hints = &items
	}

	challenge, err := s.repo.UpdateChallenge(ctx, challengeID, patch)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to update challenge",
			slog.String("challengeID", challengeID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating challenge %s: %w", challengeID, err)
	}

	s.logger.Info("challenge updated", slog.String("challengeID", challenge.ChallengeID))
	return challenge, nil
}

// Delete removes the challenge and the children it owns, returning the
// removed aggregate. Shared lookup rows stay.
func (s *ChallengeService) Delete(ctx context.Context, challengeID string) (*model.Challenge, error) {
	challenge, err := s.repo.DeleteChallenge(ctx, challengeID)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to delete challenge",
			slog.String("challengeID", challengeID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("deleting challenge %s: %w", challengeID, err)
	}

	s.logger.Info("challenge deleted", slog.String("challengeID", challenge.ChallengeID))
	return challenge, nil
}

func (s *ChallengeService) List(ctx context.Context, filter repository.ChallengeFilter, limit, offset int) ([]model.Challenge, error) {
	if filter.MinPoints != nil {
		if err := checkNonNegative("min_points", *filter.MinPoints); err != nil {
			return nil, err
		}
	}
	if filter.MaxPoints != nil {
		if err := checkNonNegative("max_points", *filter.MaxPoints); err != nil {
			return nil, err
		}
	}
	filter.Search = strings.TrimSpace(filter.Search)

	tags := make([]string, 0, len(filter.Tags))
	for _, tag := range filter.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	filter.Tags = tags

	return s.repo.ListChallenges(ctx, filter, listOptions(limit, offset))
}

// Conversations lists the conversations that discuss the challenge.
func (s *ChallengeService) Conversations(ctx context.Context, challengeID string) ([]model.Conversation, error) {
	return s.repo.ListConversationsByChallenge(ctx, challengeID)
}

func validateChallengeID(id string) error {
	if err := checkLength("challenge_id", id, MinChallengeIDLength, MaxChallengeIDLength); err != nil {
		return err
	}
	if !identifier.Valid(identifier.Challenge, id) {
		return apperror.ValidationFailed("challenge_id", "challenge_id must look like CHAL_001")
	}
	return nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	return title, checkLength("title", title, MinTitleLength, MaxTitleLength)
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	return desc, checkLength("description", desc, MinDescriptionLength, 0)
}
