package service

import (
	"context"
	"time"

	"github.com/m-mizutani/weblogparser/internal/repository"
)

// AnalyticsService provides metrics of imported entries. All metrics count
// only successful (status 200) page views by human.
type AnalyticsService struct {
	repo repository.Repository
}

// NewAnalyticsService is constructor of AnalyticsService
func NewAnalyticsService(repo repository.Repository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// PageImpressions counts page views in [start, end).
func (x *AnalyticsService) PageImpressions(ctx context.Context, start, end time.Time) (int64, error) {
	return x.repo.CountEntries(ctx, repository.NewPageViewFilter(&start, &end))
}

// Sessions counts distinct session IDs of page views in [start, end).
func (x *AnalyticsService) Sessions(ctx context.Context, start, end time.Time) (int64, error) {
	return x.repo.CountDistinctSessions(ctx, repository.NewPageViewFilter(&start, &end))
}

// EarliestTimestamp returns timestamp of the oldest page view, or nil if there is no data.
func (x *AnalyticsService) EarliestTimestamp(ctx context.Context) (*time.Time, error) {
	return x.repo.EarliestTimestamp(ctx, repository.NewPageViewFilter(nil, nil))
}

// Stats is set of metrics in a time range.
type Stats struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	PageImpressions int64      `json:"page_impressions"`
	Sessions        int64      `json:"sessions"`
	Earliest        *time.Time `json:"earliest,omitempty"`
}

// Stats calculates all metrics in [start, end).
func (x *AnalyticsService) Stats(ctx context.Context, start, end time.Time) (*Stats, error) {
	stats := &Stats{Start: start.UTC(), End: end.UTC()}
	var err error

	if stats.PageImpressions, err = x.PageImpressions(ctx, start, end); err != nil {
		return nil, err
	}
	if stats.Sessions, err = x.Sessions(ctx, start, end); err != nil {
		return nil, err
	}
	if stats.Earliest, err = x.EarliestTimestamp(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}
