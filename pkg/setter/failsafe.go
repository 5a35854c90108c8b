package setter

import (
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/bulkhead"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/fallback"
	"github.com/failsafe-go/failsafe-go/timeout"

	"mercator-hq/bulwark/pkg/policy"
)

// FallbackFunc produces a result when the protected call fails.
type FallbackFunc func(exec failsafe.Execution[any]) (any, error)

// Options tune how a Setter is turned into failsafe-go policies.
type Options struct {
	// Fallback is used only when the command has fallback enabled.
	Fallback FallbackFunc

	// Logger receives circuit breaker state changes. Nil disables them.
	Logger *slog.Logger
}

// Policies translates the Setter into failsafe-go policies, outermost first:
// fallback, circuit breaker, bulkhead, timeout.
//
// The breaker trips on the error percentage over the rolling stats window
// once the request volume threshold is reached. THREAD isolation lets
// callers wait for a bulkhead permit up to the execution timeout when the
// pool has a queue; SEMAPHORE isolation rejects immediately.
func (s *Setter) Policies(opts Options) []failsafe.Policy[any] {
	var policies []failsafe.Policy[any]

	if s.Command.FallbackEnabled && opts.Fallback != nil {
		policies = append(policies, fallback.WithFunc[any](opts.Fallback))
	}

	cbBuilder := circuitbreaker.Builder[any]().
		WithFailureRateThreshold(
			clampUint(s.Command.ErrorThresholdPercentage, 1, 100),
			clampUint(s.Command.RequestVolumeThreshold, 1, 0),
			s.ThreadPool.RollingStatsWindow,
		).
		WithDelay(s.Command.SleepWindow)
	if opts.Logger != nil {
		command := s.CommandKey
		logger := opts.Logger
		cbBuilder = cbBuilder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Info("Circuit breaker state changed",
				"command", command,
				"old_state", event.OldState.String(),
				"new_state", event.NewState.String(),
			)
		})
	}
	policies = append(policies, cbBuilder.Build())

	policies = append(policies, bulkhead.Builder[any](uint(s.ThreadPool.CoreSize)).
		WithMaxWaitTime(s.bulkheadWait()).
		Build())

	policies = append(policies, timeout.With[any](s.Command.ExecutionTimeout))

	return policies
}

// Executor composes Policies into a failsafe-go executor. The executor holds
// breaker and bulkhead state and must be shared by all calls of the command.
func (s *Setter) Executor(opts Options) failsafe.Executor[any] {
	return failsafe.NewExecutor[any](s.Policies(opts)...)
}

func (s *Setter) bulkheadWait() time.Duration {
	if s.Command.IsolationStrategy != policy.IsolationThread {
		return 0
	}
	if s.ThreadPool.MaxQueueSize == 0 || s.ThreadPool.QueueSizeRejectionThreshold == 0 {
		return 0
	}
	return s.Command.ExecutionTimeout
}

// clampUint bounds v to [lo, hi]; hi of 0 means unbounded.
func clampUint(v, lo, hi int) uint {
	if v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return uint(v)
}
