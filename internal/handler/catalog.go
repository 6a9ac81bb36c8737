package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/challenge-hub/internal/service"
)

// CatalogHandler serves the lookup tables: /categories, /difficulties and
// /tags. Tags are created implicitly through challenges, so they are
// read-only here.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.HandleListCategories)
		r.Post("/", h.HandleCreateCategory)
		r.Get("/{id}", h.HandleGetCategory)
	})
	r.Route("/difficulties", func(r chi.Router) {
		r.Get("/", h.HandleListDifficulties)
		r.Post("/", h.HandleCreateDifficulty)
		r.Get("/{id}", h.HandleGetDifficulty)
	})
	r.Get("/tags", h.HandleListTags)
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createDifficultyRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *CatalogHandler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *CatalogHandler) HandleListDifficulties(w http.ResponseWriter, r *http.Request) {
	difficulties, err := h.catalog.ListDifficulties(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, difficulties)
}

func (h *CatalogHandler) HandleCreateDifficulty(w http.ResponseWriter, r *http.Request) {
	var req createDifficultyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	difficulty, err := h.catalog.CreateDifficulty(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, difficulty)
}

func (h *CatalogHandler) HandleGetDifficulty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "difficulty")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	difficulty, err := h.catalog.GetDifficulty(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, difficulty)
}

func (h *CatalogHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalog.ListTags(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
