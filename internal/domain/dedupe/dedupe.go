// Package dedupe tracks comparison ids for idempotent submission.
package dedupe

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSize bounds the deduper when no size is configured.
const DefaultMaxSize = 50000

// Deduper records seen comparison IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a rejected submission can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// lruDeduper keeps the most recently seen ids. A repeated id counts as a
// use; when full, the least recently seen id is evicted.
// maxSize <= 0 disables eviction.
type lruDeduper struct {
	maxSize int
	seen    *lru.Cache[string, struct{}]
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	size := d.maxSize
	if size <= 0 {
		size = math.MaxInt
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// only a non-positive size fails, and size is positive here
		panic(fmt.Sprintf("dedupe: %v", err))
	}
	d.seen = cache
	return d
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if ok, _ := d.seen.ContainsOrAdd(id, struct{}{}); ok {
		d.seen.Get(id)
		return true
	}
	return false
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Remove(id)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.seen.Len())
}
