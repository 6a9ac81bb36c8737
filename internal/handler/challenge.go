package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/challenge-hub/internal/repository"
	"github.com/sakif/challenge-hub/internal/service"
)

// ChallengeHandler serves /challenges. Challenges are addressed by their
// CHAL_NNN key, never by the internal numeric ID.
type ChallengeHandler struct {
	challenges *service.ChallengeService
	logger     *slog.Logger
}

func NewChallengeHandler(challenges *service.ChallengeService, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, logger: logger}
}

func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/{challengeID}", h.HandleGet)
	r.Put("/{challengeID}", h.HandleUpdate)
	r.Delete("/{challengeID}", h.HandleDelete)
	r.Get("/{challengeID}/conversations", h.HandleConversations)
}

type createChallengeRequest struct {
	ChallengeID        string   `json:"challenge_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Points             int      `json:"points"`
	CategoryID         int64    `json:"category_id"`
	DifficultyID       int64    `json:"difficulty_id"`
	Tags               []string `json:"tags"`
	LearningObjectives []string `json:"learning_objectives"`
	Hints              []string `json:"hints"`
}

// updateChallengeRequest: an omitted field is left alone; "tags": [] clears
// the tag set.
type updateChallengeRequest struct {
	Title              *string   `json:"title"`
	Description        *string   `json:"description"`
	Points             *int      `json:"points"`
	CategoryID         *int64    `json:"category_id"`
	DifficultyID       *int64    `json:"difficulty_id"`
	Tags               *[]string `json:"tags"`
	LearningObjectives *[]string `json:"learning_objectives"`
	Hints              *[]string `json:"hints"`
}

// HandleList filters challenges.
//
// HTTP: GET /challenges?category_id=&difficulty_id=&min_points=&max_points=&search=&tags=a&tags=b&skip=&limit=
func (h *ChallengeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := challengeFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, skip, err := paging(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	challenges, err := h.challenges.List(r.Context(), filter, limit, skip)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

func challengeFilter(r *http.Request) (repository.ChallengeFilter, error) {
	var (
		f   repository.ChallengeFilter
		err error
	)
	if f.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		return f, err
	}
	if f.DifficultyID, err = queryInt64(r, "difficulty_id"); err != nil {
		return f, err
	}
	if f.MinPoints, err = queryInt(r, "min_points"); err != nil {
		return f, err
	}
	if f.MaxPoints, err = queryInt(r, "max_points"); err != nil {
		return f, err
	}
	f.Search = r.URL.Query().Get("search")
	f.Tags = r.URL.Query()["tags"]
	return f, nil
}

// HandleCreate stores a challenge and its children in one unit of work.
//
// HTTP: POST /challenges
func (h *ChallengeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	challenge, err := h.challenges.Create(r.Context(), repository.ChallengeInput{
		ChallengeID:        req.ChallengeID,
		Title:              req.Title,
		Description:        req.Description,
		Points:             req.Points,
		CategoryID:         req.CategoryID,
		DifficultyID:       req.DifficultyID,
		Tags:               req.Tags,
		LearningObjectives: req.LearningObjectives,
		Hints:              req.Hints,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.challenges.Get(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *ChallengeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	challenge, err := h.challenges.Update(r.Context(), chi.URLParam(r, "challengeID"), repository.ChallengePatch{
		Title:              req.Title,
		Description:        req.Description,
		Points:             req.Points,
		CategoryID:         req.CategoryID,
		DifficultyID:       req.DifficultyID,
		Tags:               req.Tags,
		LearningObjectives: req.LearningObjectives,
		Hints:              req.Hints,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

// HandleDelete answers with the deleted challenge.
func (h *ChallengeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.challenges.Delete(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *ChallengeHandler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.challenges.Conversations(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}
