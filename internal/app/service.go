// Package service wires the rating engine to storage, the comparison
// queue and session broadcasting. It implements the dependencies of the
// HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/storyrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/storyrank/internal/adapters/mq/worker"
	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/internal/domain/dedupe"
	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/logger"
	"github.com/okian/storyrank/pkg/metrics"
)

const (
	defaultQueueSize       = 10000
	defaultDedupeSize      = 100000
	defaultPageSize        = 25
	defaultMaxPageSize     = 100
	defaultWorkerMultipler = 2
)

// Publisher receives session events for connected clients.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, e types.SessionEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, types.SessionEvent) {}

// Service implements the API dependencies for story prioritisation.
type Service struct {
	mu sync.RWMutex

	stories   repository.StoryStore
	sessions  repository.SessionStore
	deduper   dedupe.Deduper
	queue     eventqueue.Queue
	pool      *workerpool.Pool
	publisher Publisher

	workerCount     int
	queueSize       int
	dedupeSize      int
	defaultPageSize int
	maxPageSize     int
	historyLimit    int

	started   bool
	startedAt time.Time

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64

	now   func() time.Time
	newID func() string

	logger logger.Logger
}

// New constructs a Service. Stores default to the in-memory ones; the
// queue and workers are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * defaultWorkerMultipler,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		defaultPageSize: defaultPageSize,
		maxPageSize:     defaultMaxPageSize,
		publisher:       nopPublisher{},
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stories == nil {
		s.stories = repository.NewMemoryStore(repository.WithHistoryLimit(s.historyLimit))
	}
	if s.sessions == nil {
		s.sessions = repository.NewMemorySessionStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start creates the comparison queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting storyrank service...")

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	// workers outlive the request that started them
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "storyrank service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the queue and waits for queued comparisons to be applied,
// or for ctx to end.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping storyrank service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	if err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	s.logger.Info(ctx, "storyrank service stopped",
		logger.Int64("processed", s.processed.Load()),
		logger.Int64("failed", s.failed.Load()),
	)
	return nil
}

func (s *Service) running() (eventqueue.Queue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue, s.started
}

// GetStats returns a snapshot of service counters.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		StoriesTotal:         int64(s.stories.Count(ctx)),
		ComparisonsProcessed: s.processed.Load(),
		ComparisonsDuplicate: s.duplicate.Load(),
		ComparisonsFailed:    s.failed.Load(),
		QueueCapacity:        s.queueSize,
		DedupeSize:           s.deduper.Size(),
		SessionsActive:       s.sessions.Active(ctx),
	}
	if s.started {
		stats.QueueDepth = s.queue.Len(ctx)
		stats.WorkerCount = s.pool.Size()
		stats.UptimeSeconds = s.now().Sub(s.startedAt).Seconds()
	}
	metrics.UpdateStoriesTotal(int(stats.StoriesTotal))
	metrics.UpdateQueueSize(stats.QueueDepth)
	return stats
}

func (s *Service) publish(ctx context.Context, sessionID string, e types.SessionEvent) {
	s.publisher.Publish(ctx, sessionID, e)
}

func (s *Service) pageSize(limit int) (int, error) {
	switch {
	case limit == 0:
		return s.defaultPageSize, nil
	case limit < 0 || limit > s.maxPageSize:
		return 0, fmt.Errorf("%w: %d (1..%d)", repository.ErrInvalidLimit, limit, s.maxPageSize)
	default:
		return limit, nil
	}
}
