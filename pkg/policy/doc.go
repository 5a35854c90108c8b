// Package policy defines the resilience policy data model shared by the
// compiler, the registry and the output adapters.
//
// A Config is the raw, partial input: an optional DefaultPolicy and an
// ordered list of CommandSpec values. Each sub-policy of a command (thread
// pool, circuit breaker, metrics) is either given in full or inherited in
// full from the defaults; fields are never mixed between the two.
//
// The compiler turns a Config into a Snapshot holding one ResolvedPolicy per
// command. Both types are immutable once built and are safe to share between
// goroutines without synchronisation.
//
// # Built-in defaults
//
// When the default policy omits a sub-policy, the built-in values below are used:
//
//	thread_pool:     THREAD, concurrency 10, max_queue_size 100, dynamic_queue_size 10, timeout 1s
//	circuit_breaker: request_volume_threshold 20, error_threshold_percentage 50, sleep_window 5s
//	metrics:         stats_window 10s, num_buckets 10, percentile_window 60s,
//	                 percentile_bucket_size 100, health_snapshot_interval 500ms
//
// # Errors
//
// Every error type unwraps to a sentinel (ErrNotInitialized, ErrUnknownCommand,
// ErrDuplicateCommand, ErrInvalidPolicyValue, ErrAlreadyInstalled) so callers
// can branch with errors.Is. Compilation collects all problems into an
// ErrorList before failing.
package policy
