package rating

import "fmt"

// EloRequest is one comparison outcome on a single metric.
type EloRequest struct {
	Winner Rating `json:"winner"`
	Loser  Rating `json:"loser"`
}

// EloResult carries both replacement ratings.
type EloResult struct {
	UpdatedWinner Rating `json:"updatedWinner"`
	UpdatedLoser  Rating `json:"updatedLoser"`
}

// Validate rejects non-finite ratings.
func (r EloRequest) Validate() error {
	if !r.Winner.Finite() {
		return fmt.Errorf("%w: winner=%v", ErrNonFinite, r.Winner.Value)
	}
	if !r.Loser.Finite() {
		return fmt.Errorf("%w: loser=%v", ErrNonFinite, r.Loser.Value)
	}
	return nil
}

// Run validates and applies the Elo update.
func (r EloRequest) Run() (EloResult, error) {
	if err := r.Validate(); err != nil {
		return EloResult{}, err
	}
	w, l := UpdateElo(r.Winner, r.Loser)
	return EloResult{UpdatedWinner: w, UpdatedLoser: l}, nil
}

// RankRequest is a full ordering of a batch of stories, best first.
type RankRequest struct {
	OrderedStoryIDs        []string           `json:"orderedStoryIds"`
	CurrentRatingByStoryID map[string]float64 `json:"currentRatingByStoryId"`
}

// RankResult holds the unrounded target rating per story.
type RankResult struct {
	TargetRatingByStoryID map[string]float64 `json:"targetRatingByStoryId"`
}

// Validate requires a non-empty ordering; the per-id checks happen in
// RankToRange.
func (r RankRequest) Validate() error {
	if len(r.OrderedStoryIDs) == 0 {
		return ErrEmptyOrdering
	}
	return nil
}

// Run validates and maps the ordering onto target ratings.
func (r RankRequest) Run() (RankResult, error) {
	if err := r.Validate(); err != nil {
		return RankResult{}, err
	}
	targets, err := RankToRange(r.OrderedStoryIDs, r.CurrentRatingByStoryID)
	if err != nil {
		return RankResult{}, err
	}
	return RankResult{TargetRatingByStoryID: targets}, nil
}

// AggregateRequest is every participant's value for one story.
type AggregateRequest struct {
	StoryID             string             `json:"storyId"`
	ValuesByParticipant map[string]float64 `json:"valuesByParticipant"`
}

// AggregateResult is the consensus plus display bands.
type AggregateResult struct {
	ConsensusValue float64             `json:"consensusValue"`
	Percentiles    map[float64]float64 `json:"-"`
}

// Validate requires a story id and finite values.
func (r AggregateRequest) Validate() error {
	if r.StoryID == "" {
		return ErrEmptyStoryID
	}
	for participant, v := range r.ValuesByParticipant {
		if !isFinite(v) {
			return fmt.Errorf("%w: participant %s=%v", ErrNonFinite, participant, v)
		}
	}
	return nil
}

// Run validates and aggregates.
func (r AggregateRequest) Run() (AggregateResult, error) {
	if err := r.Validate(); err != nil {
		return AggregateResult{}, err
	}
	agg := Aggregate(r.ValuesByParticipant)
	return AggregateResult{ConsensusValue: agg.Consensus, Percentiles: agg.Percentiles}, nil
}

// NormalizeRequest is a set of raw values displayed together.
type NormalizeRequest struct {
	RawValues []float64 `json:"rawValues"`
}

// Validate rejects non-finite values, which would poison the bounds.
func (r NormalizeRequest) Validate() error {
	for i, v := range r.RawValues {
		if !isFinite(v) {
			return fmt.Errorf("%w: rawValues[%d]=%v", ErrNonFinite, i, v)
		}
	}
	return nil
}

// Run validates and normalizes against the set's own bounds.
func (r NormalizeRequest) Run() ([]float64, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return NormalizeAll(r.RawValues), nil
}
