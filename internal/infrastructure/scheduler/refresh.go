// Package scheduler drives the periodic bulletin refresh.
package scheduler

import (
	"context"
	"time"

	"BulletinTracker/internal/ports"
)

// RefreshScheduler invokes the refresh job on a fixed interval. Bulletins
// are monthly, so a daily probe is more than enough to catch a new one.
type RefreshScheduler struct {
	interval time.Duration
	stop     chan struct{}
}

var _ ports.Scheduler = (*RefreshScheduler)(nil)

// NewRefreshScheduler builds a scheduler with the given probe interval.
func NewRefreshScheduler(interval time.Duration) *RefreshScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RefreshScheduler{interval: interval}
}

// Start runs the job immediately and then on every tick.
func (s *RefreshScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *RefreshScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
