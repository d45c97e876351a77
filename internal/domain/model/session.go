package model

import (
	"time"

	"github.com/okian/storyrank/internal/domain/rating"
)

// SessionStatus tracks a group slider session through its lifecycle.
type SessionStatus string

// Session lifecycle states.
const (
	SessionInProgress SessionStatus = "in-progress"
	SessionStarted    SessionStatus = "started"
	SessionFinished   SessionStatus = "finished"
)

// Session is a group slider exercise over a fixed set of stories.
type Session struct {
	ID           string        `json:"sessionId"`
	TenantID     string        `json:"tenantId"`
	Metric       rating.Metric `json:"metric"`
	StoryIDs     []string      `json:"stories"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty"`
	Participants []Participant `json:"participants"`
}

// HasStory reports whether id is part of the session.
func (s Session) HasStory(id string) bool {
	for _, sid := range s.StoryIDs {
		if sid == id {
			return true
		}
	}
	return false
}

// Completed reports whether every joined participant has submitted.
// A session nobody joined is never complete.
func (s Session) Completed() bool {
	if len(s.Participants) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if !p.Completed {
			return false
		}
	}
	return true
}

// Participant is a user taking part in a session.
type Participant struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Completed bool   `json:"completed"`
}

// Submission is one participant's slider positions, keyed by story id.
type Submission struct {
	SessionID   string             `json:"sessionId"`
	UserID      string             `json:"userId"`
	UserName    string             `json:"userName"`
	Ratings     map[string]float64 `json:"ratings"`
	SubmittedAt time.Time          `json:"submittedAt"`
}
