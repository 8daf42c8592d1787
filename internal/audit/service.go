package audit

import (
	"context"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// TimelineRepository provides read access to persisted audit events.
type TimelineRepository interface {
	// Window returns up to limit rows starting at offset, newest first.
	Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error)
	// All returns every matching row, newest first.
	All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// QueryService serves the audit timeline read side.
type QueryService struct {
	repo TimelineRepository
}

// NewQueryService builds a QueryService instance.
func NewQueryService(repo TimelineRepository) *QueryService {
	return &QueryService{repo: repo}
}

// Timeline fetches one page of audit events. It requests one row past the
// page boundary to detect whether a next page exists.
func (s *QueryService) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export fetches every matching event without paging, for CSV download.
func (s *QueryService) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.All(ctx, filters)
}
