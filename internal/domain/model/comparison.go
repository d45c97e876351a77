package model

import (
	"fmt"
	"time"

	"github.com/okian/storyrank/internal/domain/rating"
)

// Comparison validation errors. Each wraps rating.ErrMalformedInput.
var (
	ErrSameStory     = fmt.Errorf("%w: left and right story must differ", rating.ErrMalformedInput)
	ErrWinnerUnknown = fmt.Errorf("%w: winner must be the left or right story", rating.ErrMalformedInput)
	ErrMissingStory  = fmt.Errorf("%w: missing story id", rating.ErrMalformedInput)
)

// Comparison is one pairwise judgement on a single metric. It is consumed
// once by the Elo updater and never stored.
type Comparison struct {
	ID            string        // idempotency key
	TenantID      string        // owning tenant
	LeftStoryID   string        // first story shown
	RightStoryID  string        // second story shown
	WinnerStoryID string        // the one judged greater on Metric
	Metric        rating.Metric // axis being judged
	TS            time.Time     // submission time
}

// Validate checks the pair and the winner.
func (c Comparison) Validate() error {
	switch {
	case c.LeftStoryID == "" || c.RightStoryID == "":
		return ErrMissingStory
	case c.LeftStoryID == c.RightStoryID:
		return ErrSameStory
	case c.WinnerStoryID != c.LeftStoryID && c.WinnerStoryID != c.RightStoryID:
		return ErrWinnerUnknown
	case !c.Metric.Valid():
		return rating.ErrUnknownMetric
	}
	return nil
}

// Winner returns the winning story id.
func (c Comparison) Winner() string { return c.WinnerStoryID }

// Loser returns whichever of the pair did not win.
func (c Comparison) Loser() string {
	if c.WinnerStoryID == c.LeftStoryID {
		return c.RightStoryID
	}
	return c.LeftStoryID
}
