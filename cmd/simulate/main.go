package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/storyrank/internal/domain/rating"
	"github.com/okian/storyrank/internal/simulate"
	"github.com/okian/storyrank/pkg/logger"
)

// Default configuration constants.
const (
	defaultStories     = 50
	defaultComparisons = 5000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultDrain       = 2 * time.Minute
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		stories     = flag.Int("stories", defaultStories, "Number of stories to create")
		comparisons = flag.Int("comparisons", defaultComparisons, "Number of comparisons to submit")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		metric      = flag.String("metric", string(rating.Impact), "Metric to compare on")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain       = flag.Duration("drain", defaultDrain, "How long to wait for queued comparisons")
		token       = flag.String("token", "", "Bearer token (omit to use tenant headers)")
		tenant      = flag.String("tenant", "simulation", "Tenant header value when no token is given")
		user        = flag.String("user", "simulator", "User header value when no token is given")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	rep, err := simulate.Run(ctx, &simulate.Config{
		BaseURL:     *baseURL,
		Stories:     *stories,
		Comparisons: *comparisons,
		Workers:     *workers,
		Metric:      rating.Metric(*metric),
		Timeout:     *timeout,
		Drain:       *drain,
		Token:       *token,
		Tenant:      *tenant,
		User:        *user,
		Verbose:     *verbose,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "simulation failed:", err)
		os.Exit(1)
	}
	fmt.Printf("stories=%d submitted=%d accepted=%d duplicate=%d failed=%d ordered=%d/%d (%.1f%%) in %s\n",
		rep.StoriesCreated, rep.Submitted, rep.Accepted, rep.Duplicate, rep.Failed,
		rep.OrderedPairs, rep.TotalPairs, rep.Accuracy()*100, rep.Duration.Round(time.Millisecond))
}
