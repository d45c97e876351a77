package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newStory(tenant, id string, offset int) model.Story {
	return model.NewStory(tenant, "Ops: story "+id, id, epoch.Add(time.Duration(offset)*time.Second))
}

func seed(t *testing.T, s *MemoryStore, tenant string, n int) {
	t.Helper()
	batch := make([]model.Story, n)
	for i := range batch {
		batch[i] = newStory(tenant, fmt.Sprintf("s%02d", i), i)
	}
	if err := s.Create(context.Background(), batch...); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithSeed(1))

	if count := s.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}
	seed(t, s, "t1", 3)

	if count := s.Count(ctx); count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
	got, err := s.Get(ctx, "t1", "s01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Category != "Ops" || got.Title != "story s01" {
		t.Errorf("unexpected story %+v", got)
	}

	// Mutating the returned copy must not leak into the store.
	got.Ratings[rating.Impact] = rating.Rating{Value: 1}
	again, _ := s.Get(ctx, "t1", "s01")
	if again.Ratings[rating.Impact].Value != rating.DefaultRating {
		t.Errorf("store was mutated through a returned story")
	}

	if _, err := s.Get(ctx, "t2", "s01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across tenants, got %v", err)
	}
	if err := s.Create(ctx, newStory("t1", "s01", 9)); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if s.Count(ctx) != 3 {
		t.Errorf("failed create changed count")
	}
}

func TestMemoryStore_GetMany(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "t1", 3)

	got, err := s.GetMany(ctx, "t1", []string{"s02", "s00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s02" || got[1].ID != "s00" {
		t.Errorf("expected stories in request order, got %v", got)
	}

	_, err = s.GetMany(ctx, "t1", []string{"s00", "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "t1", 5)
	if err := s.Create(ctx, model.NewStory("t1", "Billing: invoice", "b1", epoch)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var ids []string
	cursor := ""
	for pages := 0; ; pages++ {
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
		page, err := s.List(ctx, "t1", ListOptions{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, st := range page.Stories {
			ids = append(ids, st.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	want := []string{"b1", "s00", "s01", "s02", "s03", "s04"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, ids)
	}

	page, err := s.List(ctx, "t1", ListOptions{Category: "billing", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Stories) != 1 || page.Stories[0].ID != "b1" {
		t.Errorf("category filter failed: %v", page.Stories)
	}

	if _, err := s.List(ctx, "t1", ListOptions{Limit: 0}); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := s.List(ctx, "t1", ListOptions{Limit: 1, Cursor: "%%%"}); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestMemoryStore_UpdateRatingsOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithSeed(7))
	seed(t, s, "t1", 4)

	at := epoch.Add(time.Hour)
	updated, err := s.UpdateRatings(ctx, "t1", rating.Risk, map[string]float64{
		"s00": 1100, "s01": 1300, "s02": 1250.5, "s03": 1300,
	}, at)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated) != 4 {
		t.Fatalf("expected 4 updated stories, got %d", len(updated))
	}
	for _, st := range updated {
		if st.UpdatedAt == nil || !st.UpdatedAt.Equal(at) {
			t.Errorf("story %s not stamped", st.ID)
		}
		if st.Ratings[rating.Risk].Uncertainty != rating.DefaultUncertainty {
			t.Errorf("uncertainty changed on %s", st.ID)
		}
	}

	top, err := s.TopN(ctx, "t1", rating.Risk, 10)
	if err != nil {
		t.Fatalf("topN: %v", err)
	}
	wantIDs := []string{"s01", "s03", "s02", "s00"}
	wantRanks := []int{1, 1, 2, 3}
	for i, e := range top {
		if e.StoryID != wantIDs[i] || e.Rank != wantRanks[i] {
			t.Errorf("position %d: got %+v, want id %s rank %d", i, e, wantIDs[i], wantRanks[i])
		}
	}
	if top[2].Rating != 1250.5 {
		t.Errorf("fractional rating lost: %v", top[2].Rating)
	}
	if top[0].Title != "story s01" {
		t.Errorf("title missing from entry: %+v", top[0])
	}

	entry, err := s.Rank(ctx, "t1", rating.Risk, "s00")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if entry.Rank != 3 || entry.Rating != 1100 {
		t.Errorf("unexpected rank entry %+v", entry)
	}

	// Other metrics are untouched.
	imp, _ := s.TopN(ctx, "t1", rating.Impact, 1)
	if imp[0].Rating != rating.DefaultRating || imp[0].StoryID != "s00" {
		t.Errorf("impact leaderboard changed: %+v", imp[0])
	}
}

func TestMemoryStore_UpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "t1", 2)

	_, err := s.UpdateRatings(ctx, "t1", rating.Impact, map[string]float64{"s00": 1500, "ghost": 1}, epoch)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.Get(ctx, "t1", "s00")
	if got.Ratings[rating.Impact].Value != rating.DefaultRating {
		t.Errorf("partial write applied")
	}

	_, err = s.UpdateRatings(ctx, "t1", rating.Impact, map[string]float64{"s00": math.NaN()}, epoch)
	if !errors.Is(err, rating.ErrMalformedInput) {
		t.Errorf("expected malformed input, got %v", err)
	}
	_, err = s.UpdateRatings(ctx, "t1", "speed", map[string]float64{"s00": 1}, epoch)
	if !errors.Is(err, rating.ErrUnknownMetric) {
		t.Errorf("expected unknown metric, got %v", err)
	}
}

func TestMemoryStore_History(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithHistoryLimit(2))
	seed(t, s, "t1", 1)

	for _, v := range []float64{1216, 1230, 1201} {
		if _, err := s.PutRatings(ctx, "t1", rating.Visibility, map[string]rating.Rating{
			"s00": {Value: v, Uncertainty: rating.DefaultUncertainty},
		}, epoch); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	got, _ := s.Get(ctx, "t1", "s00")
	h := got.Ratings[rating.Visibility].History
	if len(h) != 2 || h[0] != 1216 || h[1] != 1230 {
		t.Errorf("expected trailing history [1216 1230], got %v", h)
	}
	if got.Ratings[rating.Visibility].Value != 1201 {
		t.Errorf("expected value 1201, got %v", got.Ratings[rating.Visibility].Value)
	}
}

func TestMemoryStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.TopN(ctx, "t1", rating.Impact, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	top, err := s.TopN(ctx, "nobody", rating.Impact, 5)
	if err != nil || len(top) != 0 {
		t.Errorf("expected empty leaderboard for unknown tenant, got %v %v", top, err)
	}
	if _, err := s.Rank(ctx, "t1", rating.Impact, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	out, err := s.UpdateRatings(ctx, "t1", rating.Impact, nil, epoch)
	if err != nil || len(out) != 0 {
		t.Errorf("empty update should be a no-op, got %v %v", out, err)
	}
}

func TestMemoryStore_TreapMatchesSort(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithSeed(42))
	seed(t, s, "t1", 60)
	rng := rand.New(rand.NewSource(3))

	want := make(map[string]float64)
	for round := 0; round < 20; round++ {
		values := make(map[string]float64)
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("s%02d", rng.Intn(60))
			values[id] = float64(1000 + rng.Intn(40)*10)
		}
		if _, err := s.UpdateRatings(ctx, "t1", rating.Impact, values, epoch); err != nil {
			t.Fatalf("update: %v", err)
		}
		for k, v := range values {
			want[k] = v
		}
	}

	top, err := s.TopN(ctx, "t1", rating.Impact, 60)
	if err != nil {
		t.Fatalf("topN: %v", err)
	}
	if len(top) != 60 {
		t.Fatalf("expected 60 entries, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		if prev.Rating < cur.Rating || (prev.Rating == cur.Rating && prev.StoryID > cur.StoryID) {
			t.Fatalf("out of order at %d: %+v then %+v", i, prev, cur)
		}
		if cur.Rank != prev.Rank && cur.Rank != prev.Rank+1 {
			t.Fatalf("rank gap at %d: %d then %d", i, prev.Rank, cur.Rank)
		}
	}
	for _, e := range top {
		r, err := s.Rank(ctx, "t1", rating.Impact, e.StoryID)
		if err != nil || r.Rank != e.Rank {
			t.Fatalf("rank mismatch for %s: %+v vs %+v (%v)", e.StoryID, r, e, err)
		}
		if v, ok := want[e.StoryID]; ok && v != e.Rating {
			t.Fatalf("stale rating for %s", e.StoryID)
		}
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, tenant := range []string{"a", "b"} {
		seed(t, s, tenant, 20)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			tenant := []string{"a", "b"}[g%2]
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("s%02d", (g+i)%20)
				_, _ = s.UpdateRatings(ctx, tenant, rating.Impact, map[string]float64{id: float64(1000 + i)}, epoch)
				_, _ = s.TopN(ctx, tenant, rating.Impact, 5)
				_, _ = s.Rank(ctx, tenant, rating.Impact, id)
			}
		}(g)
	}
	wg.Wait()

	if s.Count(ctx) != 40 {
		t.Errorf("expected 40 stories, got %d", s.Count(ctx))
	}
}

func BenchmarkMemoryStore_UpdateAndTopN(b *testing.B) {
	ctx := context.Background()
	s := NewMemoryStore(WithSeed(1))
	batch := make([]model.Story, 1000)
	for i := range batch {
		batch[i] = newStory("t", fmt.Sprintf("s%04d", i), i)
	}
	if err := s.Create(ctx, batch...); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("s%04d", i%1000)
		_, _ = s.UpdateRatings(ctx, "t", rating.Impact, map[string]float64{id: float64(1000 + i%500)}, epoch)
		_, _ = s.TopN(ctx, "t", rating.Impact, 10)
	}
}
