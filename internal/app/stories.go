package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/internal/domain/chart"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/logger"
	"github.com/okian/storyrank/pkg/metrics"
)

// CreateStories parses each raw title ("Category: title") into a new
// story seeded on every metric. Either all stories are created or none.
func (s *Service) CreateStories(ctx context.Context, tenantID string, titles []string) ([]model.Story, error) {
	if len(titles) == 0 {
		return nil, invalid("no stories given")
	}
	now := s.now()
	stories := make([]model.Story, 0, len(titles))
	for i, raw := range titles {
		if strings.TrimSpace(raw) == "" {
			return nil, invalid("stories[%d]: empty title", i)
		}
		stories = append(stories, model.NewStory(tenantID, raw, s.newID(), now))
	}
	if err := s.stories.Create(ctx, stories...); err != nil {
		return nil, fmt.Errorf("create stories: %w", err)
	}
	metrics.RecordStoriesCreated(len(stories))
	s.logger.Debug(ctx, "stories created",
		logger.String("tenant", tenantID),
		logger.Int("count", len(stories)),
	)
	return stories, nil
}

// GetStory returns one story.
func (s *Service) GetStory(ctx context.Context, tenantID, id string) (model.Story, error) {
	return s.stories.Get(ctx, tenantID, id)
}

// ListStories returns one page of stories in creation order.
func (s *Service) ListStories(ctx context.Context, tenantID, category string, limit int, cursor string) (repository.Page, error) {
	n, err := s.pageSize(limit)
	if err != nil {
		return repository.Page{}, err
	}
	return s.stories.List(ctx, tenantID, repository.ListOptions{
		Category: category,
		Limit:    n,
		Cursor:   cursor,
	})
}

// Leaderboard returns the highest rated stories on metric.
func (s *Service) Leaderboard(ctx context.Context, tenantID, metric string, limit int) ([]types.Entry, error) {
	m, err := rating.ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	n, err := s.pageSize(limit)
	if err != nil {
		return nil, err
	}
	return s.stories.TopN(ctx, tenantID, m, n)
}

// StoryRank returns a story's position on metric.
func (s *Service) StoryRank(ctx context.Context, tenantID, metric, id string) (types.Entry, error) {
	m, err := rating.ParseMetric(metric)
	if err != nil {
		return types.Entry{}, err
	}
	return s.stories.Rank(ctx, tenantID, m, id)
}

// Graph returns every story of the category placed on the
// effort/risk versus impact chart.
func (s *Service) Graph(ctx context.Context, tenantID, category string) ([]types.GraphPoint, error) {
	stories, err := s.stories.All(ctx, tenantID, category)
	if err != nil {
		return nil, err
	}
	return chart.Plot(stories), nil
}
