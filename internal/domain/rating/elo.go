package rating

import (
	"fmt"
	"math"
)

// KFactor is the maximum rating swing of a single comparison.
const KFactor = 32

// eloScale is the rating difference at which the favourite is expected to
// win ten times as often.
const eloScale = 400

// ExpectedScore returns the probability that a story rated winner beats a
// story rated loser.
func ExpectedScore(winner, loser float64) float64 {
	return 1 / (1 + math.Pow(10, (loser-winner)/eloScale))
}

// UpdateElo applies one comparison. Only Value changes on the returned
// ratings; both values are rounded independently, so the two deltas are
// not always exact negatives of each other.
func UpdateElo(winner, loser Rating) (Rating, Rating) {
	delta := KFactor * (1 - ExpectedScore(winner.Value, loser.Value))
	return winner.WithValue(Round(winner.Value + delta)),
		loser.WithValue(Round(loser.Value - delta))
}

// UpdateEloChecked is UpdateElo for values that have not been validated yet.
func UpdateEloChecked(winner, loser Rating) (Rating, Rating, error) {
	if !winner.Finite() {
		return Rating{}, Rating{}, fmt.Errorf("%w: winner=%v", ErrNonFinite, winner.Value)
	}
	if !loser.Finite() {
		return Rating{}, Rating{}, fmt.Errorf("%w: loser=%v", ErrNonFinite, loser.Value)
	}
	w, l := UpdateElo(winner, loser)
	return w, l, nil
}
