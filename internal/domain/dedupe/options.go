package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*lruDeduper)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// maxSize <= 0 keeps every id forever.
func WithMaxSize(maxSize int) Option {
	return func(d *lruDeduper) {
		d.maxSize = maxSize
	}
}
