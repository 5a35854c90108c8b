package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ChangeFunc applies the resilience file at the given commit. Returning an
// error leaves the previously applied commit in effect.
type ChangeFunc func(ctx context.Context, commit *CommitInfo) error

// PollerMetrics tracks poller activity.
type PollerMetrics struct {
	PollCount         int64
	SuccessfulReloads int64
	FailedReloads     int64
	SkippedChanges    int64
	LastPollTime      time.Time
	LastReloadTime    time.Time
	LastReloadDur     time.Duration
}

// Poller pulls the repository on a cron schedule and calls a ChangeFunc when
// a pull changes the resilience file. Commits that only touch other files
// advance the tracked head without a reload.
//
//	p, err := git.NewPoller(repo, "@every 30s", apply, logger)
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
type Poller struct {
	repo     *Repository
	schedule cron.Schedule
	spec     string
	onChange ChangeFunc
	logger   *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	applied  string
	metrics  PollerMetrics
	checking sync.Mutex
}

// NewPoller parses schedule (standard cron or a descriptor such as
// "@every 30s") and returns a stopped poller.
func NewPoller(repo *Repository, schedule string, onChange ChangeFunc, logger *slog.Logger) (*Poller, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change func cannot be nil")
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		repo:     repo,
		schedule: sched,
		spec:     schedule,
		onChange: onChange,
		logger:   logger.With("component", "git_poller", "repository", repo.URL()),
	}, nil
}

// Start records the current head as applied and schedules polling.
// Polls stop when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return fmt.Errorf("poller already running")
	}

	head, err := p.repo.HeadCommit()
	if err != nil {
		return fmt.Errorf("failed to get initial commit: %w", err)
	}
	p.applied = head.SHA

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(p.schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.Check(ctx); err != nil {
			p.logger.Error("Git poll failed", "error", err)
		}
	}))
	c.Start()
	p.cron = c

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	p.logger.Info("Git poller started",
		"schedule", p.spec,
		"initial_commit", shortSHA(p.applied),
	)
	return nil
}

// Stop cancels the schedule and waits for a running poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	p.logger.Info("Git poller stopped")
}

// Running reports whether the schedule is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// Check pulls once and applies the change if the resilience file moved.
// It may be called directly to force a sync.
func (p *Poller) Check(ctx context.Context) error {
	p.checking.Lock()
	defer p.checking.Unlock()

	p.mu.Lock()
	p.metrics.PollCount++
	p.metrics.LastPollTime = time.Now()
	p.mu.Unlock()

	result, err := p.repo.Pull(ctx)
	if err != nil {
		return err
	}
	if !result.HadChanges {
		return nil
	}

	if !result.Touches(p.repo.RelPath()) {
		p.mu.Lock()
		p.metrics.SkippedChanges++
		p.applied = result.ToSHA
		p.mu.Unlock()
		p.logger.Info("Resilience file unchanged, skipping reload",
			"from_sha", shortSHA(result.FromSHA),
			"to_sha", shortSHA(result.ToSHA),
			"changed_files", len(result.ChangedFiles),
		)
		return nil
	}

	head, err := p.repo.HeadCommit()
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.onChange(ctx, head)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.LastReloadTime = time.Now()
	p.metrics.LastReloadDur = time.Since(start)

	if err != nil {
		p.metrics.FailedReloads++
		p.logger.Error("Reload from commit failed, keeping previous policies",
			"commit_sha", head.Short(),
			"applied_sha", shortSHA(p.applied),
			"error", err,
		)
		return fmt.Errorf("reload at commit %s: %w", head.Short(), err)
	}

	p.metrics.SuccessfulReloads++
	p.logger.Info("Reloaded resilience policies from commit",
		"from_sha", shortSHA(p.applied),
		"to_sha", head.Short(),
		"duration", p.metrics.LastReloadDur,
	)
	p.applied = head.SHA
	return nil
}

// Applied returns the SHA of the last commit successfully applied.
func (p *Poller) Applied() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

// Metrics returns a copy of the poller metrics.
func (p *Poller) Metrics() PollerMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}
