package properties

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the value type of a parameter.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
	// KindMillis is a duration rendered as whole milliseconds.
	KindMillis
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindMillis:
		return "millis"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Param is one tunable of the execution library.
type Param int

// The full parameter set, in emission order.
const (
	CoreSize Param = iota
	MaxQueueSize
	QueueSizeRejectionThreshold
	IsolationStrategy
	ExecutionTimeout
	ExecutionTimeoutEnabled
	InterruptOnTimeout
	SemaphoreMaxConcurrentRequests
	CircuitBreakerEnabled
	CircuitBreakerRequestVolumeThreshold
	CircuitBreakerErrorThresholdPercentage
	CircuitBreakerSleepWindow
	RollingStatsWindow
	RollingStatsNumBuckets
	RollingPercentileEnabled
	RollingPercentileWindow
	RollingPercentileNumBuckets
	RollingPercentileBucketSize
	HealthSnapshotInterval

	numParams
)

type paramInfo struct {
	name string
	kind Kind
}

var params = [numParams]paramInfo{
	CoreSize:                               {"coreSize", KindInt},
	MaxQueueSize:                           {"maxQueueSize", KindInt},
	QueueSizeRejectionThreshold:            {"queueSizeRejectionThreshold", KindInt},
	IsolationStrategy:                      {"execution.isolation.strategy", KindString},
	ExecutionTimeout:                       {"execution.isolation.thread.timeoutInMilliseconds", KindMillis},
	ExecutionTimeoutEnabled:                {"execution.timeout.enabled", KindBool},
	InterruptOnTimeout:                     {"execution.isolation.thread.interruptOnTimeout", KindBool},
	SemaphoreMaxConcurrentRequests:         {"execution.isolation.semaphore.maxConcurrentRequests", KindInt},
	CircuitBreakerEnabled:                  {"circuitBreaker.enabled", KindBool},
	CircuitBreakerRequestVolumeThreshold:   {"circuitBreaker.requestVolumeThreshold", KindInt},
	CircuitBreakerErrorThresholdPercentage: {"circuitBreaker.errorThresholdPercentage", KindInt},
	CircuitBreakerSleepWindow:              {"circuitBreaker.sleepWindowInMilliseconds", KindMillis},
	RollingStatsWindow:                     {"metrics.rollingStats.timeInMilliseconds", KindMillis},
	RollingStatsNumBuckets:                 {"metrics.rollingStats.numBuckets", KindInt},
	RollingPercentileEnabled:               {"metrics.rollingPercentile.enabled", KindBool},
	RollingPercentileWindow:                {"metrics.rollingPercentile.timeInMilliseconds", KindMillis},
	RollingPercentileNumBuckets:            {"metrics.rollingPercentile.numBuckets", KindInt},
	RollingPercentileBucketSize:            {"metrics.rollingPercentile.bucketSize", KindInt},
	HealthSnapshotInterval:                 {"metrics.healthSnapshot.intervalInMilliseconds", KindMillis},
}

// Params returns every parameter in emission order.
func Params() []Param {
	out := make([]Param, numParams)
	for i := range out {
		out[i] = Param(i)
	}
	return out
}

// ParseParam looks a parameter up by its property name.
func ParseParam(name string) (Param, error) {
	for i, info := range params {
		if info.name == name {
			return Param(i), nil
		}
	}
	return 0, fmt.Errorf("unknown property parameter %q", name)
}

// String returns the property name of p, e.g. "circuitBreaker.enabled".
func (p Param) String() string {
	if p < 0 || p >= numParams {
		return fmt.Sprintf("Param(%d)", int(p))
	}
	return params[p].name
}

// Kind returns the value type of p.
func (p Param) Kind() Kind {
	return params[p].kind
}

// Value is a typed property value. The zero Value is invalid.
type Value struct {
	kind  Kind
	valid bool
	i     int64
	b     bool
	s     string
}

// Int returns an integer value.
func Int(v int) Value { return Value{kind: KindInt, valid: true, i: int64(v)} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, valid: true, b: v} }

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, valid: true, s: v} }

// Millis returns a duration value truncated to milliseconds.
func Millis(d time.Duration) Value {
	return Value{kind: KindMillis, valid: true, i: d.Milliseconds()}
}

// Kind returns the value type.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was built by one of the constructors.
func (v Value) IsValid() bool { return v.valid }

// Int returns the integer payload of KindInt and KindMillis values.
func (v Value) Int() int64 { return v.i }

// Bool returns the payload of a KindBool value.
func (v Value) Bool() bool { return v.b }

// Duration returns the payload of a KindMillis value.
func (v Value) Duration() time.Duration { return time.Duration(v.i) * time.Millisecond }

// Interface returns the payload as int64, bool or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	default:
		return v.i
	}
}

// String renders the value as it appears in a properties file.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	default:
		return strconv.FormatInt(v.i, 10)
	}
}
