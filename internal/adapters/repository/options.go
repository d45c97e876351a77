package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithHistoryLimit keeps the last n previous values on every rating
// write. n <= 0 disables history.
func WithHistoryLimit(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithSeed fixes the treap priority source, for reproducible tests.
func WithSeed(seed uint64) Option {
	return func(s *MemoryStore) {
		s.seed = seed
	}
}
