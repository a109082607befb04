package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/autosignin/internal/config"
)

// Random daily window used when sign-in is enabled without a cron expression.
const (
	randomRuns      = 2
	randomBeginHour = 9
	randomEndHour   = 23
	randomMinGap    = 2 * 60
	randomMaxGap    = 6 * 60
)

// Run registers the sign-in job and blocks until ctx is done. Nothing is
// scheduled unless cfg.Enabled. With cfg.Cron set the job follows it;
// otherwise it runs at two random times of day, re-drawn every midnight.
func Run(ctx context.Context, cfg config.SignIn, runSignIn func()) error {
	if !cfg.Enabled {
		slog.Info("scheduler: sign-in disabled")
		<-ctx.Done()
		return nil
	}

	c := cron.New()
	if cfg.Cron != "" {
		if _, err := c.AddFunc(cfg.Cron, runSignIn); err != nil {
			return fmt.Errorf("scheduler: invalid cron %q: %w", cfg.Cron, err)
		}
		slog.Info("scheduler: added sign-in job", "cron", cfg.Cron)
	} else {
		r := newRandomJobs(c, rand.New(rand.NewSource(rand.Int63())), runSignIn)
		r.sync()
		if _, err := c.AddFunc("@midnight", r.sync); err != nil {
			return fmt.Errorf("scheduler: add reshuffle job: %w", err)
		}
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// randomJobs keeps the random daily entries and replaces them on sync.
type randomJobs struct {
	c       *cron.Cron
	rng     *rand.Rand
	run     func()
	mu      sync.Mutex
	entries []cron.EntryID
}

func newRandomJobs(c *cron.Cron, rng *rand.Rand, run func()) *randomJobs {
	return &randomJobs{c: c, rng: rng, run: run}
}

func (r *randomJobs) sync() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.entries {
		r.c.Remove(id)
	}
	r.entries = r.entries[:0]

	for _, spec := range RandomSpecs(r.rng, randomRuns, randomBeginHour, randomEndHour, randomMinGap, randomMaxGap) {
		id, err := r.c.AddFunc(spec, r.run)
		if err != nil {
			slog.Error("scheduler: add random job", "cron", spec, "error", err)
			continue
		}
		r.entries = append(r.entries, id)
		slog.Info("scheduler: added random sign-in job", "cron", spec)
	}
}

// RandomSpecs returns up to n daily cron specs between beginHour and endHour
// whose times are at least minGap and at most maxGap minutes apart.
func RandomSpecs(rng *rand.Rand, n, beginHour, endHour, minGap, maxGap int) []string {
	begin, end := beginHour*60, endHour*60
	var specs []string
	at := begin + rng.Intn(minGap)
	for i := 0; i < n && at < end; i++ {
		specs = append(specs, fmt.Sprintf("%d %d * * *", at%60, at/60))
		at += minGap + rng.Intn(maxGap-minGap+1)
	}
	return specs
}
