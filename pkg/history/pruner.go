package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner trims a Store to its newest entries on a cron schedule.
type Pruner struct {
	store    Store
	keep     int
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner. The schedule is validated by Start.
func NewPruner(store Store, keep int, schedule string, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		keep:     keep,
		schedule: schedule,
		logger:   logger.With("component", "history.pruner"),
		cron:     cron.New(),
	}
}

// Start schedules pruning. An empty schedule or keep of zero disables it.
//
// Common cron expressions:
//   - "0 4 * * *"    - Daily at 4 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "@hourly"      - Every hour
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schedule == "" || p.keep <= 0 {
		p.logger.Info("History pruning disabled")
		return nil
	}
	if p.running {
		return fmt.Errorf("pruner already running")
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.schedule, err)
	}
	if _, err := p.cron.AddFunc(p.schedule, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("History pruner started", "schedule", p.schedule, "keep", p.keep)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// RunOnce prunes immediately.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	return p.store.Prune(ctx, p.keep)
}

func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.RunOnce(ctx)
	if err != nil {
		p.logger.Error("Scheduled history pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("Scheduled history pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("Scheduled history pruning completed, no entries deleted")
	}
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("History pruner stopped")
	}
}

// NextRun returns the next scheduled prune, or nil when not running.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
