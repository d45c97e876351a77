// Package chart places stories on the prioritization scatter plot.
package chart

import (
	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/domain/types"
)

// Plot normalizes every metric over the given stories and computes each
// story's position. Bounds come from the set passed in, so a category
// filter changes the scale. Stories missing a metric are skipped.
func Plot(stories []model.Story) []types.GraphPoint {
	usable := make([]model.Story, 0, len(stories))
	for _, s := range stories {
		if s.Ratings.Validate() == nil {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return []types.GraphPoint{}
	}

	norm := make(map[rating.Metric][]float64, len(rating.Metrics()))
	for _, m := range rating.Metrics() {
		raw := make([]float64, len(usable))
		for i, s := range usable {
			raw[i] = s.Ratings[m].Value
		}
		norm[m] = rating.NormalizeAll(raw)
	}
	visThreshold := rating.Median(norm[rating.Visibility])

	points := make([]types.GraphPoint, len(usable))
	for i, s := range usable {
		impact := norm[rating.Impact][i]
		effort := norm[rating.EstimatedTime][i]
		risk := norm[rating.Risk][i]
		vis := norm[rating.Visibility][i]
		points[i] = types.GraphPoint{
			StoryID:        s.ID,
			Title:          s.Title,
			Category:       s.Category,
			Impact:         impact,
			EstimatedTime:  effort,
			Risk:           risk,
			Visibility:     vis,
			X:              X(effort, risk),
			Y:              impact,
			HighVisibility: vis >= visThreshold,
		}
	}
	return points
}

// X is the horizontal position: effort plus half the risk, rescaled back
// onto the display range.
func X(effort, risk float64) float64 {
	return (effort + risk/2) / 1.5
}
