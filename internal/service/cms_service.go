package service

import (
	"context"
	"errors"
	"strings"

	"shop-service/internal/apperr"
	"shop-service/internal/crud"
	"shop-service/internal/models"
)

type CmsService struct {
	pages CmsStore
}

func NewCmsService(pages CmsStore) *CmsService {
	return &CmsService{pages: pages}
}

type UpsertPageRequest struct {
	Slug     string      `json:"slug" binding:"required"`
	Title    string      `json:"title"`
	Content  interface{} `json:"content"`
	IsActive *bool       `json:"isActive"`
}

func (s *CmsService) Get(ctx context.Context, slug string) (*models.CmsPage, error) {
	return s.pages.FindBySlug(ctx, strings.ToLower(slug))
}

// Upsert creates the page or updates the fields present in req.
func (s *CmsService) Upsert(ctx context.Context, req *UpsertPageRequest) (*models.CmsPage, error) {
	page, err := s.pages.FindBySlug(ctx, strings.ToLower(req.Slug))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if page == nil {
		page = &models.CmsPage{Slug: req.Slug, IsActive: true}
	}
	if req.Title != "" {
		page.Title = req.Title
	}
	if req.Content != nil {
		page.Content = req.Content
	}
	if req.IsActive != nil {
		page.IsActive = *req.IsActive
	}

	if err := crud.Validate(page); err != nil {
		return nil, err
	}
	if err := s.pages.Save(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}
