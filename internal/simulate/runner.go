package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/logger"
)

const (
	drainPollInterval = 100 * time.Millisecond
	// leaderboardLimit matches the service's default max_page_size.
	leaderboardLimit = 100
	progressEvery    = 1000
)

// ErrDrainTimeout is returned when the service queue does not empty in time.
var ErrDrainTimeout = errors.New("queue did not drain before timeout")

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	log := logger.Named("simulate")
	start := time.Now()
	c := newClient(cfg)

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("stories", cfg.Stories),
		logger.Int("comparisons", cfg.Comparisons),
		logger.Int("workers", cfg.Workers),
		logger.String("metric", string(cfg.Metric)))

	if err := c.health(ctx); err != nil {
		return Report{}, fmt.Errorf("service health check failed: %w", err)
	}

	titles := make([]string, cfg.Stories)
	for i := range titles {
		titles[i] = fmt.Sprintf("Simulation: story %d", i+1)
	}
	stories, err := c.createStories(ctx, titles)
	if err != nil {
		return Report{}, fmt.Errorf("story creation failed: %w", err)
	}

	// hidden order: a higher strength always wins
	strength := make(map[string]int, len(stories))
	ids := make([]string, len(stories))
	for i, p := range rand.Perm(len(stories)) {
		strength[stories[i].ID] = p
		ids[i] = stories[i].ID
	}

	before, err := c.stats(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stats retrieval failed: %w", err)
	}

	rep := Report{StoriesCreated: len(stories)}
	submit(ctx, cfg, c, ids, strength, &rep)
	log.Info(ctx, "comparisons submitted",
		logger.Int("accepted", rep.Accepted),
		logger.Int("duplicate", rep.Duplicate),
		logger.Int("failed", rep.Failed))

	if err := waitDrain(ctx, c, cfg.Drain, before, rep.Accepted); err != nil {
		return rep, err
	}

	limit := min(len(stories), leaderboardLimit)
	entries, err := c.leaderboard(ctx, string(cfg.Metric), limit)
	if err != nil {
		return rep, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	rep.OrderedPairs, rep.TotalPairs = orderedPairs(entries, strength)
	rep.Duration = time.Since(start)

	log.Info(ctx, "simulation finished",
		logger.Int("orderedPairs", rep.OrderedPairs),
		logger.Int("totalPairs", rep.TotalPairs),
		logger.Float64("accuracy", rep.Accuracy()),
		logger.Duration("duration", rep.Duration))
	return rep, nil
}

func submit(ctx context.Context, cfg *Config, c *client, ids []string, strength map[string]int, rep *Report) {
	var accepted, duplicate, failed, done atomic.Int64
	log := logger.Named("simulate")

	jobs := make(chan comparison, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cmp := range jobs {
				switch c.compare(ctx, cmp) {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
				if n := done.Add(1); cfg.Verbose && n%progressEvery == 0 {
					log.Info(ctx, "progress", logger.Int64("submitted", n))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for range cfg.Comparisons {
			left, right := pair(ids)
			winner := left
			if strength[right] > strength[left] {
				winner = right
			}
			cmp := comparison{
				ComparisonID:  uuid.NewString(),
				Metric:        string(cfg.Metric),
				LeftStoryID:   left,
				RightStoryID:  right,
				WinnerStoryID: winner,
				TS:            timestamp(),
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- cmp:
			}
		}
	}()
	wg.Wait()

	rep.Submitted = int(done.Load())
	rep.Accepted = int(accepted.Load())
	rep.Duplicate = int(duplicate.Load())
	rep.Failed = int(failed.Load())
}

// pair picks two distinct ids.
func pair(ids []string) (string, string) {
	i := rand.IntN(len(ids))
	j := rand.IntN(len(ids) - 1)
	if j >= i {
		j++
	}
	return ids[i], ids[j]
}

// waitDrain polls /stats until every accepted comparison has left the
// queue and been applied or failed.
func waitDrain(ctx context.Context, c *client, timeout time.Duration, before types.Stats, accepted int) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		st, err := c.stats(ctx)
		if err == nil {
			handled := (st.ComparisonsProcessed - before.ComparisonsProcessed) +
				(st.ComparisonsFailed - before.ComparisonsFailed)
			if st.QueueDepth == 0 && handled >= int64(accepted) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrDrainTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// orderedPairs counts adjacent leaderboard entries that agree with the
// hidden strengths. Ties in rating count as disagreement.
func orderedPairs(entries []types.Entry, strength map[string]int) (ordered, total int) {
	for i := 1; i < len(entries); i++ {
		hi, lo := entries[i-1], entries[i]
		total++
		if hi.Rating > lo.Rating && strength[hi.StoryID] > strength[lo.StoryID] {
			ordered++
		}
	}
	return ordered, total
}
