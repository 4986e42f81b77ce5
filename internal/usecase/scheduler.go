package usecase

import (
	"context"
	"time"

	"BulletinTracker/internal/ports"
)

// Scheduler wires the refresh driver with the collector.
type Scheduler struct {
	driver    ports.Scheduler
	collector *Collector
}

// NewScheduler returns a helper to start/stop the recurring refresh.
func NewScheduler(driver ports.Scheduler, collector *Collector) *Scheduler {
	return &Scheduler{driver: driver, collector: collector}
}

// Start registers the monthly refresh with the provided scheduler.
// FetchCurrent is idempotent, so overlapping months are harmless.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.collector == nil {
		return nil
	}

	job := func(trigger time.Time) {
		_, _ = s.collector.FetchCurrent(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
