// Package types contains read shapes shared by the service and HTTP layers.
package types

import (
	"strconv"

	"github.com/okian/storyrank/internal/domain/model"
)

// Entry represents a leaderboard entry on one metric.
type Entry struct {
	Rank    int     `json:"rank"`
	StoryID string  `json:"story_id"`
	Title   string  `json:"title"`
	Rating  float64 `json:"rating"`
}

// GraphPoint is one story placed on the prioritization chart. Metric
// fields hold normalized values on the 0.5..9.5 display scale.
type GraphPoint struct {
	StoryID        string  `json:"story_id"`
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	Impact         float64 `json:"impact"`
	EstimatedTime  float64 `json:"estimated_time"`
	Risk           float64 `json:"risk"`
	Visibility     float64 `json:"visibility"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	HighVisibility bool    `json:"high_visibility"`
}

// StoryAggregate is the consensus view of one story in a session.
type StoryAggregate struct {
	StoryID     string             `json:"story_id"`
	Count       int                `json:"count"`
	Consensus   float64            `json:"consensus"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// PercentileKey formats a percentile as a JSON object key, e.g. 20 -> "p20".
func PercentileKey(p float64) string {
	return "p" + strconv.FormatFloat(p, 'f', -1, 64)
}

// Stats is the service counters snapshot served on /stats.
type Stats struct {
	StoriesTotal         int64   `json:"stories_total"`
	ComparisonsProcessed int64   `json:"comparisons_processed"`
	ComparisonsDuplicate int64   `json:"comparisons_duplicate"`
	ComparisonsFailed    int64   `json:"comparisons_failed"`
	QueueDepth           int     `json:"queue_depth"`
	QueueCapacity        int     `json:"queue_capacity"`
	WorkerCount          int     `json:"worker_count"`
	DedupeSize           int64   `json:"dedupe_size"`
	SessionsActive       int     `json:"sessions_active"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

// Session event types pushed to connected participants.
const (
	EventParticipantsUpdate = "participantsUpdate"
	EventStart              = "start"
	EventResults            = "results"
)

// SessionEvent is one message broadcast to a session's sockets.
type SessionEvent struct {
	Type         string              `json:"type"`
	SessionID    string              `json:"session_id"`
	Participants []model.Participant `json:"participants,omitempty"`
	Results      []StoryAggregate    `json:"results,omitempty"`
}

// SessionResults is the live view of a session's submissions.
type SessionResults struct {
	Session      model.Session      `json:"session"`
	Submissions  []model.Submission `json:"submissions"`
	Aggregates   []StoryAggregate   `json:"aggregates"`
	AllCompleted bool               `json:"all_completed"`
}
