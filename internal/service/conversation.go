package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/challenge-hub/internal/apperror"
	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// ConversationService manages support threads and their posts. Work is
// attributed to the callerID passed in; 0 means nobody is calling.
type ConversationService struct {
	repo   repository.ConversationRepository
	logger *slog.Logger
}

func NewConversationService(repo repository.ConversationRepository, logger *slog.Logger) *ConversationService {
	return &ConversationService{repo: repo, logger: logger}
}

// CreateConversationInput is what a caller supplies; the author comes from
// the caller identity, never from the body.
type CreateConversationInput struct {
	Topic       string
	CategoryID  int64
	ChallengeID string
	InitialPost string
}

// Create stores the conversation and its first post (post_id 1) in one unit
// of work.
func (s *ConversationService) Create(ctx context.Context, callerID int64, in CreateConversationInput) (*model.Conversation, error) {
	if callerID <= 0 {
		return nil, apperror.Unauthorized("caller identity required")
	}

	topic, err := validateTopic(in.Topic)
	if err != nil {
		return nil, err
	}
	if len(strings.Fields(topic)) < 2 {
		return nil, apperror.ValidationFailed("topic", "topic must contain at least two words")
	}
	challengeID := strings.TrimSpace(in.ChallengeID)
	if err := validateChallengeRef(challengeID); err != nil {
		return nil, err
	}
	if err := checkNonBlank("initial_post", in.InitialPost); err != nil {
		return nil, err
	}

	conv, err := s.repo.CreateConversation(ctx, repository.ConversationInput{
		Topic:       topic,
		CategoryID:  in.CategoryID,
		ChallengeID: challengeID,
		InitialPost: in.InitialPost,
		AuthorID:    callerID,
	})
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to create conversation",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		slog.String("identifier", conv.Identifier),
		slog.String("challengeID", conv.ChallengeID),
		slog.Int64("author", callerID),
	)
	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, identifier string) (*model.Conversation, error) {
	return s.repo.GetConversation(ctx, identifier)
}

func (s *ConversationService) Update(ctx context.Context, identifier string, patch repository.ConversationPatch) (*model.Conversation, error) {
	if patch.Topic != nil {
		topic, err := validateTopic(*patch.Topic)
		if err != nil {
			return nil, err
		}
		patch.Topic = &topic
	}
	if patch.ChallengeID != nil {
		ref := strings.TrimSpace(*patch.ChallengeID)
		if err := validateChallengeRef(ref); err != nil {
			return nil, err
		}
		patch.ChallengeID = &ref
	}

	conv, err := s.repo.UpdateConversation(ctx, identifier, patch)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to update conversation",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating conversation %s: %w", identifier, err)
	}

	s.logger.Info("conversation updated", slog.String("identifier", conv.Identifier))
	return conv, nil
}

// Delete removes the conversation with all of its posts.
func (s *ConversationService) Delete(ctx context.Context, identifier string) (*model.Conversation, error) {
	conv, err := s.repo.DeleteConversation(ctx, identifier)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to delete conversation",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("deleting conversation %s: %w", identifier, err)
	}

	s.logger.Info("conversation deleted",
		slog.String("identifier", conv.Identifier),
		slog.Int("posts", len(conv.Posts)),
	)
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, filter repository.ConversationFilter, limit, offset int) ([]model.Conversation, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.ChallengeID = strings.TrimSpace(filter.ChallengeID)
	return s.repo.ListConversations(ctx, filter, listOptions(limit, offset))
}

// Posts returns the conversation's posts ordered by post_id.
func (s *ConversationService) Posts(ctx context.Context, identifier string) ([]model.Post, error) {
	return s.repo.ListPosts(ctx, identifier)
}

// AddPost appends a post by the caller. Storage assigns the next post_id.
func (s *ConversationService) AddPost(ctx context.Context, callerID int64, identifier, content string) (*model.Post, error) {
	if callerID <= 0 {
		return nil, apperror.Unauthorized("caller identity required")
	}
	if err := checkNonBlank("content", content); err != nil {
		return nil, err
	}

	post, err := s.repo.AddPost(ctx, identifier, repository.PostInput{AuthorID: callerID, Content: content})
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to add post",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding post to %s: %w", identifier, err)
	}

	s.logger.Info("post added",
		slog.String("identifier", identifier),
		slog.Int("postID", post.PostID),
		slog.Int64("author", callerID),
	)
	return post, nil
}

func validateTopic(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	return topic, checkLength("topic", topic, MinTopicLength, MaxTopicLength)
}

// validateChallengeRef checks a challenge key named in a request body. Keys
// in URL paths are not checked here; they simply fail to resolve.
func validateChallengeRef(id string) error {
	if id == "" {
		return apperror.ValidationFailed("challenge_id", "challenge_id is required")
	}
	return validateChallengeID(id)
}
