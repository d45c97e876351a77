package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/pkg/logger"
	"github.com/okian/storyrank/pkg/metrics"
)

// ComparisonResult reports what happened to a submitted comparison.
// Winner and Loser are only set when it was applied synchronously.
type ComparisonResult struct {
	ID        string       `json:"id"`
	Duplicate bool         `json:"duplicate"`
	Queued    bool         `json:"queued"`
	Winner    *model.Story `json:"winner,omitempty"`
	Loser     *model.Story `json:"loser,omitempty"`
}

// SliderUpdate is one story's new value from a single-user slider page.
type SliderUpdate struct {
	StoryID   string  `json:"storyId"`
	NewRating float64 `json:"newRating"`
}

// SubmitComparison validates a comparison and either queues it for the
// workers or, when sync is set, applies it before returning. A comparison
// id seen before is acknowledged without being applied again.
func (s *Service) SubmitComparison(ctx context.Context, tenantID string, c model.Comparison, sync bool) (ComparisonResult, error) {
	c.TenantID = tenantID
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.TS.IsZero() {
		c.TS = s.now()
	}
	if err := c.Validate(); err != nil {
		return ComparisonResult{}, err
	}
	if _, err := s.stories.GetMany(ctx, tenantID, []string{c.LeftStoryID, c.RightStoryID}); err != nil {
		return ComparisonResult{}, err
	}

	res := ComparisonResult{ID: c.ID}
	key := dedupeKey(c)
	if s.deduper.SeenAndRecord(ctx, key) {
		s.duplicate.Add(1)
		metrics.RecordComparisonDuplicate()
		res.Duplicate = true
		return res, nil
	}

	if sync {
		winner, loser, err := s.apply(ctx, c)
		if err != nil {
			s.deduper.Unrecord(ctx, key)
			return ComparisonResult{}, err
		}
		res.Winner, res.Loser = &winner, &loser
		return res, nil
	}

	q, started := s.running()
	if !started {
		s.deduper.Unrecord(ctx, key)
		return ComparisonResult{}, ErrNotStarted
	}
	if err := q.TryEnqueue(ctx, c); err != nil {
		s.deduper.Unrecord(ctx, key)
		return ComparisonResult{}, fmt.Errorf("enqueue comparison %s: %w", c.ID, err)
	}
	res.Queued = true
	return res, nil
}

// ids are unique per tenant only
func dedupeKey(c model.Comparison) string {
	return c.TenantID + "/" + c.ID
}

// Apply updates both stories of a queued comparison. It is called by the
// worker pool.
func (s *Service) Apply(ctx context.Context, c model.Comparison) error {
	if _, _, err := s.apply(ctx, c); err != nil {
		// let the client retry an id that never took effect
		s.deduper.Unrecord(ctx, dedupeKey(c))
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, c model.Comparison) (model.Story, model.Story, error) {
	winner, loser, err := s.applyElo(ctx, c)
	if err != nil {
		s.failed.Add(1)
		metrics.RecordComparisonFailed()
		s.logger.Warn(ctx, "comparison not applied",
			logger.String("comparison", c.ID),
			logger.String("tenant", c.TenantID),
			logger.Error(err),
		)
		return model.Story{}, model.Story{}, err
	}
	s.processed.Add(1)
	return winner, loser, nil
}

func (s *Service) applyElo(ctx context.Context, c model.Comparison) (model.Story, model.Story, error) {
	pair, err := s.stories.GetMany(ctx, c.TenantID, []string{c.Winner(), c.Loser()})
	if err != nil {
		return model.Story{}, model.Story{}, err
	}
	w, err := pair[0].Rating(c.Metric)
	if err != nil {
		return model.Story{}, model.Story{}, err
	}
	l, err := pair[1].Rating(c.Metric)
	if err != nil {
		return model.Story{}, model.Story{}, err
	}

	out, err := rating.EloRequest{Winner: w, Loser: l}.Run()
	if err != nil {
		return model.Story{}, model.Story{}, err
	}
	updated, err := s.stories.PutRatings(ctx, c.TenantID, c.Metric, map[string]rating.Rating{
		c.Winner(): out.UpdatedWinner,
		c.Loser():  out.UpdatedLoser,
	}, c.TS)
	if err != nil {
		return model.Story{}, model.Story{}, err
	}
	metrics.RecordComparisonProcessed(math.Abs(out.UpdatedWinner.Value - w.Value))

	var winner, loser model.Story
	for _, st := range updated {
		if st.ID == c.Winner() {
			winner = st
		} else {
			loser = st
		}
	}
	return winner, loser, nil
}

// RankStories spreads an ordering (best first) of existing stories over
// the batch's target range and stores the results at full precision so
// large batches keep their order. A single story keeps its rating.
func (s *Service) RankStories(ctx context.Context, tenantID, metric string, ordered []string) (map[string]float64, error) {
	m, err := rating.ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return nil, rating.ErrEmptyOrdering
	}
	stories, err := s.stories.GetMany(ctx, tenantID, ordered)
	if err != nil {
		return nil, err
	}
	current := make(map[string]float64, len(stories))
	for _, st := range stories {
		r, err := st.Rating(m)
		if err != nil {
			return nil, err
		}
		current[st.ID] = r.Value
	}

	out, err := rating.RankRequest{OrderedStoryIDs: ordered, CurrentRatingByStoryID: current}.Run()
	if err != nil {
		return nil, err
	}
	targets := out.TargetRatingByStoryID
	if len(ordered) == 1 {
		return targets, nil
	}
	if _, err := s.stories.UpdateRatings(ctx, tenantID, m, targets, s.now()); err != nil {
		return nil, err
	}
	metrics.RecordRankBatch(len(ordered))
	return targets, nil
}

// ApplySliderUpdates stores values picked directly on a slider. A story
// listed twice keeps its last value; unknown stories are skipped. It
// returns the applied values.
func (s *Service) ApplySliderUpdates(ctx context.Context, tenantID, metric string, updates []SliderUpdate) (map[string]float64, error) {
	m, err := rating.ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	values := make(map[string]float64, len(updates))
	for i, u := range updates {
		if u.StoryID == "" {
			return nil, fmt.Errorf("updates[%d]: %w", i, rating.ErrEmptyStoryID)
		}
		if math.IsNaN(u.NewRating) || math.IsInf(u.NewRating, 0) {
			return nil, fmt.Errorf("updates[%d]: %w: %v", i, rating.ErrNonFinite, u.NewRating)
		}
		values[u.StoryID] = rating.Round(u.NewRating)
	}
	for id := range values {
		if _, err := s.stories.Get(ctx, tenantID, id); err != nil {
			if !isNotFound(err) {
				return nil, err
			}
			delete(values, id)
		}
	}
	if len(values) == 0 {
		return values, nil
	}
	if _, err := s.stories.UpdateRatings(ctx, tenantID, m, values, s.now()); err != nil {
		return nil, err
	}
	metrics.RecordSliderUpdates(len(values))
	return values, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
