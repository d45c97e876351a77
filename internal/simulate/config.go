// Package simulate drives a running storyrank service with synthetic
// comparisons and checks that the resulting leaderboard recovers the
// hidden order of the generated stories.
package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/storyrank/internal/domain/rating"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Stories     int           // Number of stories to create
	Comparisons int           // Number of comparisons to submit
	Workers     int           // Number of concurrent submitters
	Metric      rating.Metric // Metric the comparisons are cast on
	Timeout     time.Duration // HTTP request timeout
	Drain       time.Duration // How long to wait for the queue to empty
	Token       string        // Bearer token; when empty the tenant headers are sent
	Tenant      string
	User        string
	Verbose     bool
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Stories < 2:
		return fmt.Errorf("%w: at least two stories are required, got %d", ErrInvalidConfig, c.Stories)
	case c.Comparisons < 1:
		return fmt.Errorf("%w: comparisons must be positive, got %d", ErrInvalidConfig, c.Comparisons)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case !c.Metric.Valid():
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, c.Metric)
	case c.Token == "" && c.Tenant == "":
		return fmt.Errorf("%w: either a token or a tenant is required", ErrInvalidConfig)
	}
	return nil
}

// Report summarizes a finished run.
type Report struct {
	StoriesCreated int
	Submitted      int
	Accepted       int
	Duplicate      int
	Failed         int
	// OrderedPairs counts adjacent leaderboard entries whose hidden
	// strengths are in the same order as their ratings.
	OrderedPairs int
	TotalPairs   int
	Duration     time.Duration
}

// Accuracy is OrderedPairs / TotalPairs, or 0 when nothing was compared.
func (r Report) Accuracy() float64 {
	if r.TotalPairs == 0 {
		return 0
	}
	return float64(r.OrderedPairs) / float64(r.TotalPairs)
}
