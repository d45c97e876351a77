// Package repository holds story and session state.
package repository

import (
	"context"
	"time"

	"github.com/okian/storyrank/internal/domain/model"
	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/domain/types"
)

// ListOptions selects one page of a tenant's stories.
type ListOptions struct {
	Category string // empty matches every category
	Limit    int
	Cursor   string // opaque, from a previous Page.NextCursor
}

// Page is one page of stories in creation order.
type Page struct {
	Stories    []model.Story
	NextCursor string // empty on the last page
}

// StoryStore provides read/write access to stories and their ratings.
// Every write applies atomically per call; two callers that read the same
// snapshot and write back are last-write-wins.
type StoryStore interface {
	// Create stores new stories. Fails with ErrAlreadyExists on an id clash.
	Create(ctx context.Context, stories ...model.Story) error
	Get(ctx context.Context, tenantID, id string) (model.Story, error)
	// GetMany returns stories in ids order, failing with ErrNotFound if any
	// id is unknown.
	GetMany(ctx context.Context, tenantID string, ids []string) ([]model.Story, error)
	List(ctx context.Context, tenantID string, opts ListOptions) (Page, error)
	// All returns every story of a tenant, optionally filtered by category.
	All(ctx context.Context, tenantID, category string) ([]model.Story, error)

	// UpdateRatings writes new values on one metric, keeping uncertainty.
	UpdateRatings(ctx context.Context, tenantID string, metric rating.Metric, values map[string]float64, at time.Time) ([]model.Story, error)
	// PutRatings replaces whole ratings on one metric.
	PutRatings(ctx context.Context, tenantID string, metric rating.Metric, ratings map[string]rating.Rating, at time.Time) ([]model.Story, error)

	// TopN returns the n highest rated stories on metric.
	TopN(ctx context.Context, tenantID string, metric rating.Metric, n int) ([]types.Entry, error)
	// Rank returns a story's dense rank on metric.
	Rank(ctx context.Context, tenantID string, metric rating.Metric, id string) (types.Entry, error)
	// Count returns the number of stories across tenants.
	Count(ctx context.Context) int
}

// SessionStore keeps group slider sessions and their submissions.
type SessionStore interface {
	Create(ctx context.Context, s model.Session) error
	Get(ctx context.Context, tenantID, id string) (model.Session, error)
	// Join adds or renames a participant.
	Join(ctx context.Context, tenantID, id string, p model.Participant) (model.Session, error)
	// Submit stores a participant's slider positions and marks them
	// completed, joining them first if needed.
	Submit(ctx context.Context, tenantID string, sub model.Submission) (model.Session, error)
	Submissions(ctx context.Context, tenantID, id string) ([]model.Submission, error)
	SetStatus(ctx context.Context, tenantID, id string, status model.SessionStatus, at time.Time) (model.Session, error)
	// Active returns the number of sessions not yet finished.
	Active(ctx context.Context) int
}
