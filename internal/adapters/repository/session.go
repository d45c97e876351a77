package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/storyrank/internal/domain/model"
)

// unknownUserName labels a participant who submitted without joining.
const unknownUserName = "Unknown"

type sessionRecord struct {
	session     model.Session
	submissions map[string]model.Submission // by user id
}

// MemorySessionStore is an in-memory SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore constructs an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*sessionRecord)}
}

func cloneSession(s model.Session) model.Session {
	out := s
	out.StoryIDs = append([]string(nil), s.StoryIDs...)
	out.Participants = append([]model.Participant(nil), s.Participants...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// lookup must be called with mu held.
func (s *MemorySessionStore) lookup(tenantID, id string) (*sessionRecord, error) {
	rec, ok := s.sessions[id]
	if !ok || rec.session.TenantID != tenantID {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (s *MemorySessionStore) Create(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s: %w", sess.ID, ErrAlreadyExists)
	}
	s.sessions[sess.ID] = &sessionRecord{
		session:     cloneSession(sess),
		submissions: make(map[string]model.Submission),
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, tenantID, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(tenantID, id)
	if err != nil {
		return model.Session{}, err
	}
	return cloneSession(rec.session), nil
}

func (s *MemorySessionStore) Join(_ context.Context, tenantID, id string, p model.Participant) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookup(tenantID, id)
	if err != nil {
		return model.Session{}, err
	}
	if rec.session.Status == model.SessionFinished {
		return model.Session{}, fmt.Errorf("session %s: %w", id, ErrSessionFinished)
	}
	upsertParticipant(&rec.session, p.UserID, p.UserName, false)
	return cloneSession(rec.session), nil
}

// upsertParticipant adds or updates a participant. An existing name is
// kept when name is empty; completed only ever flips to true.
func upsertParticipant(sess *model.Session, userID, name string, completed bool) {
	for i := range sess.Participants {
		if sess.Participants[i].UserID == userID {
			if name != "" {
				sess.Participants[i].UserName = name
			}
			sess.Participants[i].Completed = sess.Participants[i].Completed || completed
			return
		}
	}
	if name == "" {
		name = unknownUserName
	}
	sess.Participants = append(sess.Participants, model.Participant{UserID: userID, UserName: name, Completed: completed})
}

func (s *MemorySessionStore) Submit(_ context.Context, tenantID string, sub model.Submission) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookup(tenantID, sub.SessionID)
	if err != nil {
		return model.Session{}, err
	}
	if rec.session.Status == model.SessionFinished {
		return model.Session{}, fmt.Errorf("session %s: %w", sub.SessionID, ErrSessionFinished)
	}
	for storyID := range sub.Ratings {
		if !rec.session.HasStory(storyID) {
			return model.Session{}, fmt.Errorf("story %s: %w", storyID, ErrUnknownStory)
		}
	}

	upsertParticipant(&rec.session, sub.UserID, sub.UserName, true)
	stored := sub
	stored.Ratings = make(map[string]float64, len(sub.Ratings))
	for k, v := range sub.Ratings {
		stored.Ratings[k] = v
	}
	for _, p := range rec.session.Participants {
		if p.UserID == sub.UserID {
			stored.UserName = p.UserName
		}
	}
	rec.submissions[sub.UserID] = stored
	return cloneSession(rec.session), nil
}

// Submissions returns every stored submission ordered by submission time.
func (s *MemorySessionStore) Submissions(_ context.Context, tenantID, id string) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(tenantID, id)
	if err != nil {
		return nil, err
	}
	out := make([]model.Submission, 0, len(rec.submissions))
	for _, sub := range rec.submissions {
		c := sub
		c.Ratings = make(map[string]float64, len(sub.Ratings))
		for k, v := range sub.Ratings {
			c.Ratings[k] = v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// SetStatus moves a session forward. A finished session cannot change.
func (s *MemorySessionStore) SetStatus(_ context.Context, tenantID, id string, status model.SessionStatus, at time.Time) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookup(tenantID, id)
	if err != nil {
		return model.Session{}, err
	}
	if rec.session.Status == model.SessionFinished {
		return model.Session{}, fmt.Errorf("session %s: %w", id, ErrSessionFinished)
	}
	rec.session.Status = status
	if status == model.SessionFinished {
		t := at.UTC()
		rec.session.FinishedAt = &t
	}
	return cloneSession(rec.session), nil
}

func (s *MemorySessionStore) Active(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.sessions {
		if rec.session.Status != model.SessionFinished {
			n++
		}
	}
	return n
}
