package policy

import "time"

// Built-in values used when the default policy omits a sub-policy.
const (
	BuiltinIsolation        = IsolationThread
	BuiltinConcurrency      = 10
	BuiltinMaxQueueSize     = 100
	BuiltinDynamicQueueSize = 10
	BuiltinTimeout          = 1 * time.Second

	BuiltinRequestVolumeThreshold   = 20
	BuiltinErrorThresholdPercentage = 50
	BuiltinSleepWindow              = 5 * time.Second

	BuiltinStatsWindow            = 10 * time.Second
	BuiltinNumBuckets             = 10
	BuiltinPercentileWindow       = 60 * time.Second
	BuiltinPercentileBucketSize   = 100
	BuiltinHealthSnapshotInterval = 500 * time.Millisecond
)

// BuiltinThreadPool returns the built-in thread pool policy.
func BuiltinThreadPool() ThreadPoolPolicy {
	return ThreadPoolPolicy{
		Concurrency:      BuiltinConcurrency,
		MaxQueueSize:     BuiltinMaxQueueSize,
		DynamicQueueSize: BuiltinDynamicQueueSize,
		Isolation:        BuiltinIsolation,
		Timeout:          BuiltinTimeout,
	}
}

// BuiltinCircuitBreaker returns the built-in circuit breaker policy.
func BuiltinCircuitBreaker() CircuitBreakerPolicy {
	return CircuitBreakerPolicy{
		RequestVolumeThreshold:   BuiltinRequestVolumeThreshold,
		ErrorThresholdPercentage: BuiltinErrorThresholdPercentage,
		SleepWindow:              BuiltinSleepWindow,
	}
}

// BuiltinMetrics returns the built-in metrics policy.
func BuiltinMetrics() MetricsPolicy {
	return MetricsPolicy{
		StatsWindow:            BuiltinStatsWindow,
		NumBuckets:             BuiltinNumBuckets,
		PercentileWindow:       BuiltinPercentileWindow,
		PercentileBucketSize:   BuiltinPercentileBucketSize,
		HealthSnapshotInterval: BuiltinHealthSnapshotInterval,
	}
}

// BuiltinDefaults returns a completed default policy made of built-ins only.
func BuiltinDefaults() Defaults {
	return Defaults{
		ThreadPool:     BuiltinThreadPool(),
		CircuitBreaker: BuiltinCircuitBreaker(),
		Metrics:        BuiltinMetrics(),
	}
}
