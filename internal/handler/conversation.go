package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/challenge-hub/internal/repository"
	"github.com/sakif/challenge-hub/internal/service"
)

// ConversationHandler serves /conversations and their posts. Writes that
// attribute content to a user (create, add post) need a caller identity.
type ConversationHandler struct {
	conversations *service.ConversationService
	logger        *slog.Logger
}

func NewConversationHandler(conversations *service.ConversationService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, logger: logger}
}

func (h *ConversationHandler) RegisterRoutes(r chi.Router, requireCaller func(http.Handler) http.Handler) {
	r.Get("/", h.HandleList)
	r.With(requireCaller).Post("/", h.HandleCreate)
	r.Get("/{identifier}", h.HandleGet)
	r.Put("/{identifier}", h.HandleUpdate)
	r.Delete("/{identifier}", h.HandleDelete)
	r.Get("/{identifier}/posts", h.HandlePosts)
	r.With(requireCaller).Post("/{identifier}/posts", h.HandleAddPost)
}

// Identifier is accepted from older clients and ignored; the server
// allocates it.
type createConversationRequest struct {
	Identifier  *string `json:"identifier"`
	Topic       string  `json:"topic"`
	CategoryID  int64   `json:"category_id"`
	ChallengeID string  `json:"challenge_id"`
	InitialPost string  `json:"initial_post"`
}

type updateConversationRequest struct {
	Topic       *string `json:"topic"`
	CategoryID  *int64  `json:"category_id"`
	ChallengeID *string `json:"challenge_id"`
}

// UserID and Timestamp are accepted and ignored: the author is the caller
// and the timestamp is the server's clock.
type addPostRequest struct {
	Content   string     `json:"content"`
	UserID    *int64     `json:"user_id"`
	Timestamp *time.Time `json:"timestamp"`
}

// HandleList filters conversations. search matches the topic or any post.
//
// HTTP: GET /conversations?category_id=&challenge_id=&user_id=&search=&skip=&limit=
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		f   repository.ConversationFilter
		err error
	)
	if f.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.UserID, err = queryInt64(r, "user_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	f.ChallengeID = r.URL.Query().Get("challenge_id")
	f.Search = r.URL.Query().Get("search")

	limit, skip, err := paging(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	conversations, err := h.conversations.List(r.Context(), f, limit, skip)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

// HandleCreate stores the conversation with the caller's initial post.
//
// HTTP: POST /conversations
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	conv, err := h.conversations.Create(r.Context(), callerID(r), service.CreateConversationInput{
		Topic:       req.Topic,
		CategoryID:  req.CategoryID,
		ChallengeID: req.ChallengeID,
		InitialPost: req.InitialPost,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Get(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	conv, err := h.conversations.Update(r.Context(), chi.URLParam(r, "identifier"), repository.ConversationPatch{
		Topic:       req.Topic,
		CategoryID:  req.CategoryID,
		ChallengeID: req.ChallengeID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// HandleDelete answers with the deleted conversation, posts included.
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversations.Delete(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.conversations.Posts(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleAddPost appends a post by the caller.
//
// HTTP: POST /conversations/{identifier}/posts
func (h *ConversationHandler) HandleAddPost(w http.ResponseWriter, r *http.Request) {
	var req addPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	post, err := h.conversations.AddPost(r.Context(), callerID(r), chi.URLParam(r, "identifier"), req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}
