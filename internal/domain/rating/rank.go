package rating

import (
	"fmt"
	"math"
)

// MinSpan is the narrowest range a ranked batch is spread over, so that a
// set of tied stories still ends up meaningfully differentiated.
const MinSpan = 100

// Range is the target interval a ranked batch is mapped onto.
type Range struct {
	Min float64
	Max float64
}

// Span returns Max - Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// TargetRange computes the interval for a batch with the given current
// values: the current spread widened to at least MinSpan, centred on the
// current midpoint. values must be non-empty and finite.
func TargetRange(values []float64) Range {
	lo, hi := Bounds(values)
	span := math.Max(hi-lo, MinSpan)
	mid := (lo + hi) / 2
	return Range{Min: mid - span/2, Max: mid + span/2}
}

// TargetAt returns the value for position index (0 = top ranked) of n
// items spread linearly over r. n must be at least 2.
func (r Range) TargetAt(index, n int) float64 {
	return r.Min + r.Span()*float64(n-1-index)/float64(n-1)
}

// RankToRange converts an ordering (best first) into target ratings. Only
// position matters; identities are used to look up current values and to
// key the result. Output keeps full precision.
//
// A single story keeps its current value; the linear spread is defined for
// two or more items only.
func RankToRange(ordered []string, current map[string]float64) (map[string]float64, error) {
	values := make([]float64, 0, len(ordered))
	seen := make(map[string]struct{}, len(ordered))
	for _, id := range ordered {
		if id == "" {
			return nil, ErrEmptyStoryID
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		v, ok := current[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingRating, id)
		}
		if !isFinite(v) {
			return nil, fmt.Errorf("%w: %s=%v", ErrNonFinite, id, v)
		}
		values = append(values, v)
	}

	out := make(map[string]float64, len(ordered))
	switch n := len(ordered); n {
	case 0:
		return out, nil
	case 1:
		out[ordered[0]] = values[0]
		return out, nil
	default:
		r := TargetRange(values)
		for i, id := range ordered {
			out[id] = r.TargetAt(i, n)
		}
		return out, nil
	}
}
