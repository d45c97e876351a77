// Package rating is the pure numeric core of story prioritization: the
// rating model, the pairwise Elo update, rank-to-range mapping, percentile
// aggregation and display normalization.
//
// Nothing in this package performs I/O, holds state or blocks. Every
// function returns new values; callers persist them.
package rating

import (
	"fmt"
	"math"
)

// Seed values for a freshly created story.
const (
	DefaultRating      = 1200
	DefaultUncertainty = 300
)

// Rating is a story's standing on one metric.
type Rating struct {
	Value       float64   `json:"rating"`
	Uncertainty float64   `json:"uncertainty"`
	History     []float64 `json:"history,omitempty"`
}

// Seed returns a rating with the default value and uncertainty.
func Seed() Rating {
	return Rating{Value: DefaultRating, Uncertainty: DefaultUncertainty}
}

// WithValue returns a copy of r with Value replaced. History is copied so
// the result never aliases the receiver.
func (r Rating) WithValue(v float64) Rating {
	out := r
	out.Value = v
	out.History = cloneHistory(r.History)
	return out
}

// Append returns a copy of r with prev added to the trailing history,
// keeping only the last limit entries. A limit <= 0 leaves history as is.
func (r Rating) Append(prev float64, limit int) Rating {
	out := r
	out.History = cloneHistory(r.History)
	if limit <= 0 {
		return out
	}
	out.History = append(out.History, prev)
	if n := len(out.History); n > limit {
		out.History = out.History[n-limit:]
	}
	return out
}

// Finite reports whether the value can take part in a computation.
func (r Rating) Finite() bool {
	return isFinite(r.Value)
}

func cloneHistory(h []float64) []float64 {
	if h == nil {
		return nil
	}
	out := make([]float64, len(h))
	copy(out, h)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ratings maps every metric to its rating for one story.
type Ratings map[Metric]Rating

// SeedRatings returns seeded ratings for all four metrics.
func SeedRatings() Ratings {
	out := make(Ratings, len(Metrics()))
	for _, m := range Metrics() {
		out[m] = Seed()
	}
	return out
}

// Require returns the rating for m or ErrMissingMetric.
func (rs Ratings) Require(m Metric) (Rating, error) {
	r, ok := rs[m]
	if !ok {
		return Rating{}, fmt.Errorf("%w: %s", ErrMissingMetric, m)
	}
	return r, nil
}

// Validate checks that all four metrics are present with finite values.
func (rs Ratings) Validate() error {
	for _, m := range Metrics() {
		r, err := rs.Require(m)
		if err != nil {
			return err
		}
		if !r.Finite() {
			return fmt.Errorf("%w: %s=%v", ErrNonFinite, m, r.Value)
		}
	}
	return nil
}

// Clone deep-copies the map and every history slice.
func (rs Ratings) Clone() Ratings {
	if rs == nil {
		return nil
	}
	out := make(Ratings, len(rs))
	for m, r := range rs {
		out[m] = r.WithValue(r.Value)
	}
	return out
}

// Round rounds a computed value for persistence (half away from zero).
func Round(v float64) float64 {
	return math.Round(v)
}
