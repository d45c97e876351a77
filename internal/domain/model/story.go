// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/okian/storyrank/internal/domain/rating"
)

// DefaultCategory is assigned when a title carries no "Category:" prefix.
const DefaultCategory = "uncategorized"

// Story is a backlog item rated on every metric.
type Story struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Title     string         `json:"title"`
	Category  string         `json:"category"`
	Ratings   rating.Ratings `json:"elo"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
	Archived  bool           `json:"archived,omitempty"`
}

// NewStory builds a story from a raw title such as "Billing: refund flow",
// seeding every metric.
func NewStory(tenantID, rawTitle, id string, now time.Time) Story {
	category, title := SplitTitle(rawTitle)
	return Story{
		ID:        id,
		TenantID:  tenantID,
		Title:     title,
		Category:  category,
		Ratings:   rating.SeedRatings(),
		CreatedAt: now.UTC(),
	}
}

// SplitTitle separates an optional "Category:" prefix from the title. The
// prefix only counts when it is non-empty and something follows the colon.
func SplitTitle(raw string) (category, title string) {
	title = strings.TrimSpace(raw)
	idx := strings.Index(title, ":")
	if idx <= 0 {
		return DefaultCategory, title
	}
	prefix := strings.TrimSpace(title[:idx])
	rest := strings.TrimSpace(title[idx+1:])
	if rest == "" || prefix == "" {
		return DefaultCategory, title
	}
	return capitalizeFirst(strings.ToLower(prefix)), rest
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Rating returns the story's rating on m, failing if the metric is absent.
func (s Story) Rating(m rating.Metric) (rating.Rating, error) {
	return s.Ratings.Require(m)
}

// Clone deep-copies the story so callers can hand it out safely.
func (s Story) Clone() Story {
	out := s
	out.Ratings = s.Ratings.Clone()
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
