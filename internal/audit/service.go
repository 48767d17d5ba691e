package audit

import (
	"context"
	"fmt"

	"github.com/meridian-fleet/meridian/internal/shared"
)

// Repository provides timeline data access.
type Repository interface {
	Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineEntry, int, error)
}

// Result wraps timeline rows with paging information.
type Result struct {
	Entries []TimelineEntry
	Paging  shared.Pagination
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService constructs a timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

const maxPageSize = 50

// Timeline fetches audit entries with paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	entries, total, err := s.repo.Timeline(ctx, filters, pageSize, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Entries: entries,
		Paging:  shared.NewPagination(page, pageSize, total),
	}, nil
}
