// Package testutil provides fixtures and gopter generators shared by the
// policy package tests.
package testutil

import (
	"fmt"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"

	"mercator-hq/bulwark/pkg/policy"
)

// DefaultTestParameters returns the gopter parameters used by property tests.
func DefaultTestParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	params.MaxSize = 20
	return params
}

func millis(v any) time.Duration {
	return time.Duration(v.(int)) * time.Millisecond
}

// GenSubMillis generates offsets in [0, 1ms). Added to a whole-millisecond
// duration, any non-zero offset makes it unrepresentable as a property.
func GenSubMillis() gopter.Gen {
	return gen.Int64Range(0, int64(time.Millisecond)-1).Map(func(v int64) time.Duration {
		return time.Duration(v)
	})
}

// GenIsolationMode generates THREAD or SEMAPHORE.
func GenIsolationMode() gopter.Gen {
	return gen.OneConstOf(policy.IsolationThread, policy.IsolationSemaphore)
}

// GenThreadPoolPolicy generates valid thread pool policies.
func GenThreadPoolPolicy() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 200),   // Concurrency
		gen.IntRange(0, 1000),  // MaxQueueSize
		gen.IntRange(0, 1000),  // DynamicQueueSize
		GenIsolationMode(),     // Isolation
		gen.IntRange(1, 30000), // Timeout in ms
	).Map(func(vals []interface{}) policy.ThreadPoolPolicy {
		return policy.ThreadPoolPolicy{
			Concurrency:      vals[0].(int),
			MaxQueueSize:     vals[1].(int),
			DynamicQueueSize: vals[2].(int),
			Isolation:        vals[3].(policy.IsolationMode),
			Timeout:          millis(vals[4]),
		}
	})
}

// GenCircuitBreakerPolicy generates valid circuit breaker policies.
func GenCircuitBreakerPolicy() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 500),   // RequestVolumeThreshold
		gen.IntRange(0, 100),   // ErrorThresholdPercentage
		gen.IntRange(0, 60000), // SleepWindow in ms
	).Map(func(vals []interface{}) policy.CircuitBreakerPolicy {
		return policy.CircuitBreakerPolicy{
			RequestVolumeThreshold:   vals[0].(int),
			ErrorThresholdPercentage: vals[1].(int),
			SleepWindow:              millis(vals[2]),
		}
	})
}

// GenMetricsPolicy generates valid metrics policies. Windows are generated
// as multiples of the bucket count.
func GenMetricsPolicy() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 20),    // NumBuckets
		gen.IntRange(1, 2000),  // StatsWindow per bucket in ms
		gen.IntRange(1, 6000),  // PercentileWindow per bucket in ms
		gen.IntRange(1, 1000),  // PercentileBucketSize
		gen.IntRange(0, 10000), // HealthSnapshotInterval in ms
	).Map(func(vals []interface{}) policy.MetricsPolicy {
		buckets := vals[0].(int)
		return policy.MetricsPolicy{
			StatsWindow:            time.Duration(buckets*vals[1].(int)) * time.Millisecond,
			NumBuckets:             buckets,
			PercentileWindow:       time.Duration(buckets*vals[2].(int)) * time.Millisecond,
			PercentileBucketSize:   vals[3].(int),
			HealthSnapshotInterval: millis(vals[4]),
		}
	})
}

// GenDefaultPolicy generates default policies with each sub-policy
// independently present or absent.
func GenDefaultPolicy() gopter.Gen {
	return gopter.CombineGens(
		gen.PtrOf(GenThreadPoolPolicy()),
		gen.PtrOf(GenCircuitBreakerPolicy()),
		gen.PtrOf(GenMetricsPolicy()),
	).Map(func(vals []interface{}) policy.DefaultPolicy {
		return policy.DefaultPolicy{
			ThreadPool:     vals[0].(*policy.ThreadPoolPolicy),
			CircuitBreaker: vals[1].(*policy.CircuitBreakerPolicy),
			Metrics:        vals[2].(*policy.MetricsPolicy),
		}
	})
}

// GenCommandSpec generates an unnamed command spec with each sub-policy
// independently present or absent.
func GenCommandSpec() gopter.Gen {
	return gopter.CombineGens(
		gen.PtrOf(GenThreadPoolPolicy()),
		gen.PtrOf(GenCircuitBreakerPolicy()),
		gen.PtrOf(GenMetricsPolicy()),
		gen.Bool(),
	).Map(func(vals []interface{}) policy.CommandSpec {
		return policy.CommandSpec{
			ThreadPool:      vals[0].(*policy.ThreadPoolPolicy),
			CircuitBreaker:  vals[1].(*policy.CircuitBreakerPolicy),
			Metrics:         vals[2].(*policy.MetricsPolicy),
			FallbackEnabled: vals[3].(bool),
		}
	})
}

// GenConfig generates valid configurations with uniquely named commands
// ("cmd-0", "cmd-1", ...). The defaults block itself may be absent.
func GenConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.PtrOf(GenDefaultPolicy()),
		gen.SliceOf(GenCommandSpec()),
	).Map(func(vals []interface{}) *policy.Config {
		commands := vals[1].([]policy.CommandSpec)
		for i := range commands {
			commands[i].Name = fmt.Sprintf("cmd-%d", i)
		}
		return &policy.Config{
			Defaults: vals[0].(*policy.DefaultPolicy),
			Commands: commands,
		}
	})
}
