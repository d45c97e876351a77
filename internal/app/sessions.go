package service

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/logger"
	"github.com/okian/storyrank/pkg/metrics"
)

// ConsensusResult is what ApplySessionConsensus wrote back.
type ConsensusResult struct {
	Session types.SessionResults `json:"results"`
	Applied map[string]float64   `json:"applied"`
}

// CreateSession opens a group slider session over existing stories.
func (s *Service) CreateSession(ctx context.Context, tenantID, metric string, storyIDs []string) (model.Session, error) {
	m, err := rating.ParseMetric(metric)
	if err != nil {
		return model.Session{}, err
	}
	if len(storyIDs) == 0 {
		return model.Session{}, invalid("session needs at least one story")
	}
	seen := make(map[string]struct{}, len(storyIDs))
	for _, id := range storyIDs {
		if _, dup := seen[id]; dup {
			return model.Session{}, fmt.Errorf("%w: %s", rating.ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	if _, err := s.stories.GetMany(ctx, tenantID, storyIDs); err != nil {
		return model.Session{}, err
	}

	sess := model.Session{
		ID:        s.newID(),
		TenantID:  tenantID,
		Metric:    m,
		StoryIDs:  append([]string(nil), storyIDs...),
		Status:    model.SessionInProgress,
		StartedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return model.Session{}, err
	}
	s.logger.Info(ctx, "session created",
		logger.String("session", sess.ID),
		logger.String("tenant", tenantID),
		logger.Int("stories", len(storyIDs)),
	)
	return sess, nil
}

// GetSession returns a session with its participants.
func (s *Service) GetSession(ctx context.Context, tenantID, id string) (model.Session, error) {
	return s.sessions.Get(ctx, tenantID, id)
}

// JoinSession adds a participant and tells everyone connected.
func (s *Service) JoinSession(ctx context.Context, tenantID, id, userID, userName string) (model.Session, error) {
	if userID == "" {
		return model.Session{}, invalid("missing user id")
	}
	sess, err := s.sessions.Join(ctx, tenantID, id, model.Participant{UserID: userID, UserName: userName})
	if err != nil {
		return model.Session{}, err
	}
	s.publishParticipants(ctx, sess)
	return sess, nil
}

// StartSession moves the session to started and signals the sliders.
func (s *Service) StartSession(ctx context.Context, tenantID, id string) (model.Session, error) {
	sess, err := s.sessions.SetStatus(ctx, tenantID, id, model.SessionStarted, s.now())
	if err != nil {
		return model.Session{}, err
	}
	s.publish(ctx, sess.ID, types.SessionEvent{Type: types.EventStart, SessionID: sess.ID})
	return sess, nil
}

// SubmitSessionRatings stores one participant's slider values. An unknown
// participant is joined on the way.
func (s *Service) SubmitSessionRatings(ctx context.Context, tenantID, id, userID, userName string, values map[string]float64) (model.Session, error) {
	if userID == "" {
		return model.Session{}, invalid("missing user id")
	}
	if len(values) == 0 {
		return model.Session{}, invalid("no ratings submitted")
	}
	for storyID, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Session{}, fmt.Errorf("%w: %s=%v", rating.ErrNonFinite, storyID, v)
		}
	}
	sess, err := s.sessions.Submit(ctx, tenantID, model.Submission{
		SessionID:   id,
		UserID:      userID,
		UserName:    userName,
		Ratings:     values,
		SubmittedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Session{}, err
	}
	s.publishParticipants(ctx, sess)
	return sess, nil
}

func (s *Service) publishParticipants(ctx context.Context, sess model.Session) {
	s.publish(ctx, sess.ID, types.SessionEvent{
		Type:         types.EventParticipantsUpdate,
		SessionID:    sess.ID,
		Participants: sess.Participants,
	})
}

// SessionResults aggregates the submissions received so far, one entry
// per session story in session order.
func (s *Service) SessionResults(ctx context.Context, tenantID, id string) (types.SessionResults, error) {
	sess, err := s.sessions.Get(ctx, tenantID, id)
	if err != nil {
		return types.SessionResults{}, err
	}
	subs, err := s.sessions.Submissions(ctx, tenantID, id)
	if err != nil {
		return types.SessionResults{}, err
	}

	aggregates := make([]types.StoryAggregate, 0, len(sess.StoryIDs))
	for _, storyID := range sess.StoryIDs {
		byUser := make(map[string]float64, len(subs))
		for _, sub := range subs {
			if v, ok := sub.Ratings[storyID]; ok {
				byUser[sub.UserID] = v
			}
		}
		out, err := rating.AggregateRequest{StoryID: storyID, ValuesByParticipant: byUser}.Run()
		if err != nil {
			return types.SessionResults{}, err
		}
		agg := types.StoryAggregate{
			StoryID:     storyID,
			Count:       len(byUser),
			Consensus:   out.ConsensusValue,
			Percentiles: make(map[string]float64, len(out.Percentiles)),
		}
		for p, v := range out.Percentiles {
			agg.Percentiles[types.PercentileKey(p)] = v
		}
		aggregates = append(aggregates, agg)
	}

	return types.SessionResults{
		Session:      sess,
		Submissions:  subs,
		Aggregates:   aggregates,
		AllCompleted: sess.Completed(),
	}, nil
}

// ApplySessionConsensus writes each story's rounded median back to the
// session metric and finishes the session. Stories nobody rated keep
// their value. Completion of every participant is not required.
func (s *Service) ApplySessionConsensus(ctx context.Context, tenantID, id string) (ConsensusResult, error) {
	results, err := s.SessionResults(ctx, tenantID, id)
	if err != nil {
		return ConsensusResult{}, err
	}
	if results.Session.Status == model.SessionFinished {
		return ConsensusResult{}, fmt.Errorf("session %s: %w", id, repository.ErrSessionFinished)
	}

	applied := make(map[string]float64, len(results.Aggregates))
	for _, agg := range results.Aggregates {
		if agg.Count == 0 {
			continue
		}
		applied[agg.StoryID] = rating.Round(agg.Consensus)
	}
	if len(applied) > 0 {
		if _, err := s.stories.UpdateRatings(ctx, tenantID, results.Session.Metric, applied, s.now()); err != nil {
			return ConsensusResult{}, err
		}
	}
	sess, err := s.sessions.SetStatus(ctx, tenantID, id, model.SessionFinished, s.now())
	if err != nil {
		return ConsensusResult{}, err
	}
	results.Session = sess
	metrics.RecordSessionAggregation()

	s.publish(ctx, sess.ID, types.SessionEvent{
		Type:      types.EventResults,
		SessionID: sess.ID,
		Results:   results.Aggregates,
	})
	s.logger.Info(ctx, "session consensus applied",
		logger.String("session", sess.ID),
		logger.Int("stories", len(applied)),
		logger.Int("submissions", len(results.Submissions)),
	)
	return ConsensusResult{Session: results, Applied: applied}, nil
}
