package setter

import (
	"time"

	"mercator-hq/bulwark/pkg/policy"
)

// CommandProperties are the execution, breaker and metrics settings of one
// command.
type CommandProperties struct {
	IsolationStrategy                      policy.IsolationMode `json:"isolation_strategy"`
	SemaphoreMaxConcurrentRequests         int                  `json:"semaphore_max_concurrent_requests"`
	FallbackSemaphoreMaxConcurrentRequests int                  `json:"fallback_semaphore_max_concurrent_requests"`
	FallbackEnabled                        bool                 `json:"fallback_enabled"`
	ErrorThresholdPercentage               int                  `json:"error_threshold_percentage"`
	RequestVolumeThreshold                 int                  `json:"request_volume_threshold"`
	SleepWindow                            time.Duration        `json:"sleep_window"`
	ExecutionTimeout                       time.Duration        `json:"execution_timeout"`
	HealthSnapshotInterval                 time.Duration        `json:"health_snapshot_interval"`
	RollingPercentileBucketSize            int                  `json:"rolling_percentile_bucket_size"`
	RollingPercentileWindow                time.Duration        `json:"rolling_percentile_window"`
}

// ThreadPoolProperties are the worker pool settings of one command.
type ThreadPoolProperties struct {
	CoreSize                    int           `json:"core_size"`
	MaxQueueSize                int           `json:"max_queue_size"`
	QueueSizeRejectionThreshold int           `json:"queue_size_rejection_threshold"`
	RollingStatsBuckets         int           `json:"rolling_stats_buckets"`
	RollingStatsWindow          time.Duration `json:"rolling_stats_window"`
}

// Setter is the structured configuration handed to the execution library
// for one command. Group, command and thread pool keys are all the command
// name, so every command gets its own breaker and pool.
type Setter struct {
	GroupKey      string               `json:"group_key"`
	CommandKey    string               `json:"command_key"`
	ThreadPoolKey string               `json:"thread_pool_key"`
	Command       CommandProperties    `json:"command"`
	ThreadPool    ThreadPoolProperties `json:"thread_pool"`
}

// FromPolicy builds the Setter of a resolved policy.
func FromPolicy(p *policy.ResolvedPolicy) *Setter {
	tp := p.ThreadPool()
	cb := p.CircuitBreaker()
	m := p.Metrics()

	return &Setter{
		GroupKey:      p.Name(),
		CommandKey:    p.Name(),
		ThreadPoolKey: p.Name(),
		Command: CommandProperties{
			IsolationStrategy:                      tp.Isolation,
			SemaphoreMaxConcurrentRequests:         tp.Concurrency,
			FallbackSemaphoreMaxConcurrentRequests: tp.Concurrency,
			FallbackEnabled:                        p.FallbackEnabled(),
			ErrorThresholdPercentage:               cb.ErrorThresholdPercentage,
			RequestVolumeThreshold:                 cb.RequestVolumeThreshold,
			SleepWindow:                            cb.SleepWindow,
			ExecutionTimeout:                       tp.Timeout,
			HealthSnapshotInterval:                 m.HealthSnapshotInterval,
			RollingPercentileBucketSize:            m.PercentileBucketSize,
			RollingPercentileWindow:                m.PercentileWindow,
		},
		ThreadPool: ThreadPoolProperties{
			CoreSize:                    tp.Concurrency,
			MaxQueueSize:                tp.MaxQueueSize,
			QueueSizeRejectionThreshold: tp.DynamicQueueSize,
			RollingStatsBuckets:         m.NumBuckets,
			RollingStatsWindow:          m.StatsWindow,
		},
	}
}

// BuildAll builds the Setter of every command in snap, keyed by name.
func BuildAll(snap *policy.Snapshot) map[string]*Setter {
	out := make(map[string]*Setter, snap.Len())
	for _, p := range snap.Policies() {
		out[p.Name()] = FromPolicy(p)
	}
	return out
}
