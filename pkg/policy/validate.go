package policy

import "time"

// Validate checks every field of the thread pool policy and returns one
// error per violation. scope is the command name or DefaultScope.
func (p ThreadPoolPolicy) Validate(scope string) []error {
	var errs []error
	add := func(field string, value any, msg string) {
		errs = append(errs, &InvalidPolicyValueError{Command: scope, Field: "thread_pool." + field, Value: value, Message: msg})
	}

	if p.Concurrency <= 0 {
		add("concurrency", p.Concurrency, "must be greater than 0")
	}
	if p.MaxQueueSize < 0 {
		add("max_queue_size", p.MaxQueueSize, "must not be negative")
	}
	if p.DynamicQueueSize < 0 {
		add("dynamic_queue_size", p.DynamicQueueSize, "must not be negative")
	}
	if !p.Isolation.Valid() {
		add("isolation", p.Isolation, "must be THREAD or SEMAPHORE")
	}
	if p.Timeout <= 0 {
		add("timeout", p.Timeout, "must be greater than 0")
	} else if !wholeMillis(p.Timeout) {
		add("timeout", p.Timeout, msgWholeMillis)
	}
	return errs
}

// Validate checks every field of the circuit breaker policy.
func (p CircuitBreakerPolicy) Validate(scope string) []error {
	var errs []error
	add := func(field string, value any, msg string) {
		errs = append(errs, &InvalidPolicyValueError{Command: scope, Field: "circuit_breaker." + field, Value: value, Message: msg})
	}

	if p.RequestVolumeThreshold < 0 {
		add("request_volume_threshold", p.RequestVolumeThreshold, "must not be negative")
	}
	if p.ErrorThresholdPercentage < 0 || p.ErrorThresholdPercentage > 100 {
		add("error_threshold_percentage", p.ErrorThresholdPercentage, "must be between 0 and 100")
	}
	if p.SleepWindow < 0 {
		add("sleep_window", p.SleepWindow, "must not be negative")
	} else if !wholeMillis(p.SleepWindow) {
		add("sleep_window", p.SleepWindow, msgWholeMillis)
	}
	return errs
}

// Validate checks every field of the metrics policy. Both rolling windows
// must split evenly into NumBuckets.
func (p MetricsPolicy) Validate(scope string) []error {
	var errs []error
	add := func(field string, value any, msg string) {
		errs = append(errs, &InvalidPolicyValueError{Command: scope, Field: "metrics." + field, Value: value, Message: msg})
	}

	if p.StatsWindow <= 0 {
		add("stats_window", p.StatsWindow, "must be greater than 0")
	} else if !wholeMillis(p.StatsWindow) {
		add("stats_window", p.StatsWindow, msgWholeMillis)
	}
	if p.NumBuckets <= 0 {
		add("num_buckets", p.NumBuckets, "must be greater than 0")
	}
	if p.PercentileWindow <= 0 {
		add("percentile_window", p.PercentileWindow, "must be greater than 0")
	} else if !wholeMillis(p.PercentileWindow) {
		add("percentile_window", p.PercentileWindow, msgWholeMillis)
	}
	if p.PercentileBucketSize <= 0 {
		add("percentile_bucket_size", p.PercentileBucketSize, "must be greater than 0")
	}
	if p.HealthSnapshotInterval < 0 {
		add("health_snapshot_interval", p.HealthSnapshotInterval, "must not be negative")
	} else if !wholeMillis(p.HealthSnapshotInterval) {
		add("health_snapshot_interval", p.HealthSnapshotInterval, msgWholeMillis)
	}

	if p.NumBuckets > 0 {
		if p.StatsWindow > 0 && wholeMillis(p.StatsWindow) && !divisible(p.StatsWindow, p.NumBuckets) {
			add("stats_window", p.StatsWindow, "must be evenly divisible by num_buckets")
		}
		if p.PercentileWindow > 0 && wholeMillis(p.PercentileWindow) && !divisible(p.PercentileWindow, p.NumBuckets) {
			add("percentile_window", p.PercentileWindow, "must be evenly divisible by num_buckets")
		}
	}
	return errs
}

// Validate checks all three sub-policies of the completed defaults.
func (d Defaults) Validate() []error {
	var errs []error
	errs = append(errs, d.ThreadPool.Validate(DefaultScope)...)
	errs = append(errs, d.CircuitBreaker.Validate(DefaultScope)...)
	errs = append(errs, d.Metrics.Validate(DefaultScope)...)
	return errs
}

const msgWholeMillis = "must be a whole number of milliseconds"

// Durations are rendered as integer milliseconds, so anything finer would be
// truncated on the way out.
func wholeMillis(d time.Duration) bool {
	return d%time.Millisecond == 0
}

// Windows are compared at millisecond precision, the unit the execution
// library is configured in.
func divisible(window time.Duration, buckets int) bool {
	return window.Milliseconds()%int64(buckets) == 0
}
