package service

import (
	"time"

	"github.com/okian/storyrank/internal/adapters/repository"
	"github.com/okian/storyrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of comparison workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the comparison queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many comparison ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithHistoryLimit sets how many previous values the default story store
// keeps per rating. Ignored when WithStoryStore is used.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.historyLimit = n
		}
	}
}

// WithPageSizes sets the default and maximum page size for lists and
// leaderboards.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(s *Service) {
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
		if defaultSize > 0 && defaultSize <= s.maxPageSize {
			s.defaultPageSize = defaultSize
		}
	}
}

// WithStoryStore replaces the in-memory story store.
func WithStoryStore(store repository.StoryStore) Option {
	return func(s *Service) {
		if store != nil {
			s.stories = store
		}
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store repository.SessionStore) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithPublisher sets where session events are broadcast.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
