package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/challenge-hub/internal/model"
	"github.com/sakif/challenge-hub/internal/repository"
)

// CatalogService manages the lookup tables: categories, difficulties, tags.
type CatalogService struct {
	repo   repository.CatalogRepository
	logger *slog.Logger
}

func NewCatalogService(repo repository.CatalogRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	name, err := checkName("name", name)
	if err != nil {
		return nil, err
	}

	c := &model.Category{Name: name, Description: strings.TrimSpace(description)}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("category created", slog.Int64("id", c.ID), slog.String("name", c.Name))
	return c, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *CatalogService) CreateDifficulty(ctx context.Context, name string) (*model.Difficulty, error) {
	name, err := checkName("name", name)
	if err != nil {
		return nil, err
	}

	d := &model.Difficulty{Name: name}
	if err := s.repo.CreateDifficulty(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("difficulty created", slog.Int64("id", d.ID), slog.String("name", d.Name))
	return d, nil
}

func (s *CatalogService) GetDifficulty(ctx context.Context, id int64) (*model.Difficulty, error) {
	return s.repo.GetDifficulty(ctx, id)
}

func (s *CatalogService) ListDifficulties(ctx context.Context) ([]model.Difficulty, error) {
	return s.repo.ListDifficulties(ctx)
}

func (s *CatalogService) ListTags(ctx context.Context) ([]model.Tag, error) {
	return s.repo.ListTags(ctx)
}
