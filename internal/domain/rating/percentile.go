package rating

import (
	"math"
	"sort"
)

// DisplayPercentiles are the bands shown next to a session result. Only
// the 50th is ever persisted.
var DisplayPercentiles = []float64{20, 40, 50, 60, 80}

// ConsensusPercentile is the percentile persisted as a session consensus.
const ConsensusPercentile = 50

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. p is clamped to [0, 100] and NaN
// counts as 0. An empty input yields 0. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

// Median is Percentile(values, 50). For even counts it interpolates
// exactly like every other percentile.
func Median(values []float64) float64 {
	return Percentile(values, ConsensusPercentile)
}

func percentileSorted(sorted []float64, p float64) float64 {
	if math.IsNaN(p) {
		p = 0
	}
	p = math.Max(0, math.Min(100, p))
	idx := p / 100 * float64(len(sorted)-1)
	lo := math.Floor(idx)
	hi := math.Ceil(idx)
	if lo == hi {
		return sorted[int(idx)]
	}
	lower, upper := sorted[int(lo)], sorted[int(hi)]
	// float rounding must not push an interpolated value past its neighbour
	return math.Min(upper, lower+(upper-lower)*(idx-lo))
}

// Aggregation is the reduction of one story's participant submissions.
type Aggregation struct {
	Consensus   float64             `json:"consensus"`
	Percentiles map[float64]float64 `json:"-"`
	Count       int                 `json:"count"`
}

// RoundedConsensus is the value written back to the story.
func (a Aggregation) RoundedConsensus() float64 {
	return Round(a.Consensus)
}

// Aggregate reduces the submitted values for one story. Participants who
// did not rate the story are simply absent from the map.
func Aggregate(valuesByParticipant map[string]float64) Aggregation {
	values := make([]float64, 0, len(valuesByParticipant))
	for _, v := range valuesByParticipant {
		values = append(values, v)
	}
	sort.Float64s(values)

	agg := Aggregation{
		Percentiles: make(map[float64]float64, len(DisplayPercentiles)),
		Count:       len(values),
	}
	if len(values) == 0 {
		for _, p := range DisplayPercentiles {
			agg.Percentiles[p] = 0
		}
		return agg
	}
	for _, p := range DisplayPercentiles {
		agg.Percentiles[p] = percentileSorted(values, p)
	}
	agg.Consensus = percentileSorted(values, ConsensusPercentile)
	return agg
}
