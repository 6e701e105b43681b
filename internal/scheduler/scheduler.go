// Package scheduler runs the periodic re-rank and expiry sweep jobs.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Jobs is the part of the exam service the scheduler drives.
type Jobs interface {
	RerankAll(ctx context.Context) (int, error)
	SweepExpired(ctx context.Context, grace time.Duration) (int, error)
}

type Options struct {
	// Rerank and ExpirySweep are cron schedules ("@every 5m", "*/10 * * * *"). Empty disables the job.
	Rerank      string
	ExpirySweep string
	Grace       time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
}

// New registers the jobs on a cron that the caller starts and stops. Jobs skip a run while
// the previous one is still going.
func New(ctx context.Context, jobs Jobs, opts Options) (*cron.Cron, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if opts.Rerank != "" {
		_, err := c.AddFunc(opts.Rerank, func() {
			runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
			n, err := jobs.RerankAll(runCtx)
			if err != nil {
				log.Printf("[scheduler] rerank failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[scheduler] rerank updated %d attempts", n)
			}
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[scheduler] rerank scheduled: %s", opts.Rerank)
	}

	if opts.ExpirySweep != "" {
		_, err := c.AddFunc(opts.ExpirySweep, func() {
			runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
			n, err := jobs.SweepExpired(runCtx, opts.Grace)
			if err != nil {
				log.Printf("[scheduler] expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[scheduler] auto-submitted %d expired attempts", n)
			}
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[scheduler] expiry sweep scheduled: %s", opts.ExpirySweep)
	}
	return c, nil
}
