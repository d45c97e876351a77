package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/metrics"
)

type tenantState struct {
	mu      sync.RWMutex
	stories map[string]*model.Story
	indexes map[rating.Metric]*ratingIndex
}

func newTenantState() *tenantState {
	t := &tenantState{
		stories: make(map[string]*model.Story),
		indexes: make(map[rating.Metric]*ratingIndex, len(rating.Metrics())),
	}
	for _, m := range rating.Metrics() {
		t.indexes[m] = newRatingIndex()
	}
	return t
}

// MemoryStore is an in-memory StoryStore partitioned by tenant, with one
// treap leaderboard per (tenant, metric).
type MemoryStore struct {
	mu           sync.RWMutex
	tenants      map[string]*tenantState
	historyLimit int
	seed         uint64

	rngMu sync.Mutex
	rng   *rand.Rand

	count atomic.Int64
}

var _ StoryStore = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		tenants: make(map[string]*tenantState),
		seed:    uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	return s
}

func (s *MemoryStore) priority() uint64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Uint64()
}

func (s *MemoryStore) tenant(id string) (*tenantState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	return t, ok
}

func (s *MemoryStore) tenantForWrite(id string) *tenantState {
	if t, ok := s.tenant(id); ok {
		return t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		return t
	}
	t := newTenantState()
	s.tenants[id] = t
	return t
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// Create stores new stories, all or nothing.
func (s *MemoryStore) Create(_ context.Context, stories ...model.Story) error {
	defer observeUpdate(time.Now())

	byTenant := make(map[string][]model.Story)
	for _, st := range stories {
		if st.ID == "" || st.TenantID == "" {
			return fmt.Errorf("%w: story needs id and tenant", rating.ErrMalformedInput)
		}
		if err := st.Ratings.Validate(); err != nil {
			return fmt.Errorf("story %s: %w", st.ID, err)
		}
		byTenant[st.TenantID] = append(byTenant[st.TenantID], st)
	}

	for tenantID, batch := range byTenant {
		t := s.tenantForWrite(tenantID)
		t.mu.Lock()
		seen := make(map[string]struct{}, len(batch))
		for _, st := range batch {
			_, dup := seen[st.ID]
			if _, exists := t.stories[st.ID]; exists || dup {
				t.mu.Unlock()
				return fmt.Errorf("story %s: %w", st.ID, ErrAlreadyExists)
			}
			seen[st.ID] = struct{}{}
		}
		for _, st := range batch {
			c := st.Clone()
			t.stories[c.ID] = &c
			for _, m := range rating.Metrics() {
				t.indexes[m].set(c.ID, c.Ratings[m].Value, s.priority())
			}
		}
		t.mu.Unlock()
		s.count.Add(int64(len(batch)))
	}
	metrics.UpdateStoriesTotal(s.Count(context.Background()))
	return nil
}

// Get returns one story.
func (s *MemoryStore) Get(_ context.Context, tenantID, id string) (model.Story, error) {
	defer observeQuery(time.Now())

	t, ok := s.tenant(tenantID)
	if !ok {
		return model.Story{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.stories[id]
	if !ok {
		return model.Story{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	return st.Clone(), nil
}

// GetMany returns stories in ids order.
func (s *MemoryStore) GetMany(_ context.Context, tenantID string, ids []string) ([]model.Story, error) {
	defer observeQuery(time.Now())

	t, ok := s.tenant(tenantID)
	if !ok {
		if len(ids) == 0 {
			return []model.Story{}, nil
		}
		return nil, fmt.Errorf("story %s: %w", ids[0], ErrNotFound)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Story, 0, len(ids))
	for _, id := range ids {
		st, ok := t.stories[id]
		if !ok {
			return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
		}
		out = append(out, st.Clone())
	}
	return out, nil
}

func (s *MemoryStore) sorted(tenantID, category string) []model.Story {
	t, ok := s.tenant(tenantID)
	if !ok {
		return []model.Story{}
	}
	t.mu.RLock()
	out := make([]model.Story, 0, len(t.stories))
	for _, st := range t.stories {
		if category != "" && !strings.EqualFold(st.Category, category) {
			continue
		}
		out = append(out, st.Clone())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return storyBefore(out[i], out[j]) })
	return out
}

func storyBefore(a, b model.Story) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// All returns every story of a tenant in creation order.
func (s *MemoryStore) All(_ context.Context, tenantID, category string) ([]model.Story, error) {
	defer observeQuery(time.Now())
	return s.sorted(tenantID, category), nil
}

// List returns one page in creation order.
func (s *MemoryStore) List(_ context.Context, tenantID string, opts ListOptions) (Page, error) {
	defer observeQuery(time.Now())

	if opts.Limit < 1 {
		return Page{}, ErrInvalidLimit
	}
	all := s.sorted(tenantID, opts.Category)

	start := 0
	if opts.Cursor != "" {
		after, err := decodeCursor(opts.Cursor)
		if err != nil {
			return Page{}, err
		}
		start = sort.Search(len(all), func(i int) bool { return storyBefore(after, all[i]) })
	}
	end := min(start+opts.Limit, len(all))

	page := Page{Stories: all[start:end]}
	if end < len(all) {
		page.NextCursor = encodeCursor(all[end-1])
	}
	return page, nil
}

func encodeCursor(s model.Story) string {
	raw := strconv.FormatInt(s.CreatedAt.UnixNano(), 10) + ":" + s.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(c string) (model.Story, error) {
	raw, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return model.Story{}, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return model.Story{}, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return model.Story{}, ErrInvalidCursor
	}
	return model.Story{ID: id, CreatedAt: time.Unix(0, nanos).UTC()}, nil
}

// UpdateRatings writes new values on one metric.
func (s *MemoryStore) UpdateRatings(ctx context.Context, tenantID string, metric rating.Metric, values map[string]float64, at time.Time) ([]model.Story, error) {
	return s.write(tenantID, metric, len(values), func(current map[string]*model.Story) (map[string]rating.Rating, error) {
		out := make(map[string]rating.Rating, len(values))
		for id, v := range values {
			st, ok := current[id]
			if !ok {
				return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
			}
			r, err := st.Ratings.Require(metric)
			if err != nil {
				return nil, err
			}
			r.Value = v
			out[id] = r
		}
		return out, nil
	}, at)
}

// PutRatings replaces whole ratings on one metric.
func (s *MemoryStore) PutRatings(ctx context.Context, tenantID string, metric rating.Metric, ratings map[string]rating.Rating, at time.Time) ([]model.Story, error) {
	return s.write(tenantID, metric, len(ratings), func(current map[string]*model.Story) (map[string]rating.Rating, error) {
		for id := range ratings {
			if _, ok := current[id]; !ok {
				return nil, fmt.Errorf("story %s: %w", id, ErrNotFound)
			}
		}
		return ratings, nil
	}, at)
}

// write validates the whole batch, then applies it under the tenant lock.
func (s *MemoryStore) write(
	tenantID string,
	metric rating.Metric,
	n int,
	resolve func(map[string]*model.Story) (map[string]rating.Rating, error),
	at time.Time,
) ([]model.Story, error) {
	defer observeUpdate(time.Now())

	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", rating.ErrUnknownMetric, metric)
	}
	if n == 0 {
		return []model.Story{}, nil
	}
	t, ok := s.tenant(tenantID)
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := resolve(t.stories)
	if err != nil {
		return nil, err
	}
	for id, r := range next {
		if !r.Finite() {
			return nil, fmt.Errorf("%w: story %s", rating.ErrNonFinite, id)
		}
	}

	stamp := at.UTC()
	ids := make([]string, 0, len(next))
	for id := range next {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.Story, 0, len(ids))
	for _, id := range ids {
		st := t.stories[id]
		prev := st.Ratings[metric]
		r := next[id]
		updated := prev.Append(prev.Value, s.historyLimit)
		updated.Value = r.Value
		updated.Uncertainty = r.Uncertainty
		st.Ratings[metric] = updated
		st.UpdatedAt = &stamp
		t.indexes[metric].set(id, updated.Value, s.priority())
		out = append(out, st.Clone())
	}
	return out, nil
}

// TopN returns the n highest rated stories on metric.
func (s *MemoryStore) TopN(_ context.Context, tenantID string, metric rating.Metric, n int) ([]types.Entry, error) {
	defer observeQuery(time.Now())

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", rating.ErrUnknownMetric, metric)
	}
	t, ok := s.tenant(tenantID)
	if !ok {
		return []types.Entry{}, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := t.indexes[metric].top(n)
	for i := range entries {
		entries[i].Title = t.stories[entries[i].StoryID].Title
	}
	return entries, nil
}

// Rank returns a story's dense rank on metric.
func (s *MemoryStore) Rank(_ context.Context, tenantID string, metric rating.Metric, id string) (types.Entry, error) {
	defer observeQuery(time.Now())

	if !metric.Valid() {
		return types.Entry{}, fmt.Errorf("%w: %q", rating.ErrUnknownMetric, metric)
	}
	t, ok := s.tenant(tenantID)
	if !ok {
		return types.Entry{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.indexes[metric].rank(id)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	entry.Title = t.stories[id].Title
	return entry, nil
}

// Count returns the number of stories across tenants.
func (s *MemoryStore) Count(context.Context) int {
	return int(s.count.Load())
}
