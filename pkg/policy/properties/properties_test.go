package properties

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mercator-hq/bulwark/internal/testutil"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/compiler"
)

func ordersSnapshot(t *testing.T) *policy.Snapshot {
	t.Helper()
	snap, err := compiler.Resolve(&policy.Config{
		Commands: []policy.CommandSpec{
			{
				Name: "orders",
				ThreadPool: &policy.ThreadPoolPolicy{
					Concurrency:  25,
					MaxQueueSize: 50,
					Isolation:    policy.IsolationSemaphore,
					Timeout:      2 * time.Second,
				},
			},
			{Name: "payments"},
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return snap
}

func TestKey_String(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{Key{DefaultScope, CoreSize}, "hystrix.command.default.coreSize"},
		{Key{"orders", SemaphoreMaxConcurrentRequests}, "hystrix.command.orders.execution.isolation.semaphore.maxConcurrentRequests"},
		{Key{"orders", ExecutionTimeout}, "hystrix.command.orders.execution.isolation.thread.timeoutInMilliseconds"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}

	if got := (Key{"x", CoreSize}).Render("resilience"); got != "resilience.x.coreSize" {
		t.Errorf("Render() = %q", got)
	}
}

func TestParseParam(t *testing.T) {
	for _, p := range Params() {
		got, err := ParseParam(p.String())
		if err != nil || got != p {
			t.Errorf("ParseParam(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParseParam("execution.isolation.semaphore.macConcurrentRequests"); err == nil {
		t.Error("misspelt parameter accepted")
	}
}

func TestRender_Orders(t *testing.T) {
	set := Render(ordersSnapshot(t))

	checks := []struct {
		cmd   string
		param Param
		want  string
	}{
		{"orders", CoreSize, "25"},
		{"orders", SemaphoreMaxConcurrentRequests, "25"},
		{"orders", IsolationStrategy, "SEMAPHORE"},
		{"orders", ExecutionTimeout, "2000"},
		{"orders", CircuitBreakerErrorThresholdPercentage, "50"},
		{"orders", CircuitBreakerEnabled, "true"},
		{"payments", CoreSize, "10"},
		{"payments", RollingPercentileNumBuckets, "10"},
		{"payments", HealthSnapshotInterval, "500"},
	}
	for _, c := range checks {
		v, ok := set.Effective(c.cmd, c.param)
		if !ok {
			t.Errorf("Effective(%s, %s) not found", c.cmd, c.param)
			continue
		}
		if v.String() != c.want {
			t.Errorf("Effective(%s, %s) = %s, want %s", c.cmd, c.param, v, c.want)
		}
	}

	if _, ok := set.Effective("inventory", CoreSize); ok {
		t.Error("Effective() found an unknown command")
	}
}

func TestRender_Compact(t *testing.T) {
	set := Render(ordersSnapshot(t), WithCompact())

	if _, ok := set.Override("payments", CoreSize); ok {
		t.Error("compact set kept an override equal to the default")
	}
	if v, ok := set.Override("orders", CoreSize); !ok || v.Int() != 25 {
		t.Errorf("compact set lost a real override: %v %v", v, ok)
	}
	if v, _ := set.Effective("payments", CoreSize); v.Int() != 10 {
		t.Errorf("Effective(payments, coreSize) = %v, want 10", v)
	}
}

func TestSet_WriteTo(t *testing.T) {
	set := Render(ordersSnapshot(t), WithPrefix("hystrix.command"))

	var buf bytes.Buffer
	n, err := set.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != buf.Len() {
		t.Errorf("WriteTo() = %d, buffer has %d bytes", n, buf.Len())
	}

	out := buf.String()
	for _, want := range []string{
		"hystrix.command.default.coreSize=10\n",
		"hystrix.command.orders.coreSize=25\n",
		"hystrix.command.orders.execution.isolation.strategy=SEMAPHORE\n",
		"hystrix.command.payments.metrics.rollingStats.timeInMilliseconds=10000\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if want := 1 + 3*int(numParams); len(lines) != want {
		t.Errorf("got %d lines, want %d", len(lines), want)
	}
}

type failingSink struct{ after int }

func (f *failingSink) SetProperty(Key, Value) error {
	if f.after == 0 {
		return errors.New("store unavailable")
	}
	f.after--
	return nil
}

func TestEmit(t *testing.T) {
	set := Render(ordersSnapshot(t))

	sink := NewMapSink()
	if err := Emit(set, sink); err != nil {
		t.Fatal(err)
	}
	if sink.Len() != 3*int(numParams) {
		t.Errorf("sink has %d properties, want %d", sink.Len(), 3*int(numParams))
	}
	if v, ok := sink.Get(Key{"orders", CoreSize}); !ok || v.Int() != 25 {
		t.Errorf("orders.coreSize = %v %v", v, ok)
	}

	err := Emit(set, &failingSink{after: 3})
	if err == nil || !strings.Contains(err.Error(), "store unavailable") {
		t.Errorf("Emit() error = %v", err)
	}
}

func TestProperty_EffectiveMatchesCompiler(t *testing.T) {
	props := gopter.NewProperties(testutil.DefaultTestParameters())

	props.Property("effective values equal resolved values", prop.ForAll(
		func(cfg *policy.Config, compact bool) bool {
			snap, err := compiler.Resolve(cfg)
			if err != nil {
				return false
			}
			var opts []Option
			if compact {
				opts = append(opts, WithCompact())
			}
			set := Render(snap, opts...)

			for _, p := range snap.Policies() {
				want := Values(p)
				for _, param := range Params() {
					got, ok := set.Effective(p.Name(), param)
					if !ok || got != want[param] || got.Kind() != param.Kind() {
						return false
					}
				}
			}
			return true
		},
		testutil.GenConfig(),
		gen.Bool(),
	))

	props.TestingRun(t)
}

// readThrough resolves a parameter the way the execution library reads a
// dynamic property store: the command's own key, else the global default.
func readThrough(sink *MapSink, command string, param Param) (Value, bool) {
	if v, ok := sink.Get(Key{Scope(command), param}); ok {
		return v, true
	}
	return sink.Get(Key{DefaultScope, param})
}

// sinkMatchesPolicy compares every parameter read back from sink with the raw
// fields of p, durations included, so truncation shows up as a mismatch.
func sinkMatchesPolicy(sink *MapSink, p *policy.ResolvedPolicy) error {
	tp, cb, m := p.ThreadPool(), p.CircuitBreaker(), p.Metrics()

	durations := map[Param]time.Duration{
		ExecutionTimeout:          tp.Timeout,
		CircuitBreakerSleepWindow: cb.SleepWindow,
		RollingStatsWindow:        m.StatsWindow,
		RollingPercentileWindow:   m.PercentileWindow,
		HealthSnapshotInterval:    m.HealthSnapshotInterval,
	}
	ints := map[Param]int{
		CoreSize:                               tp.Concurrency,
		MaxQueueSize:                           tp.MaxQueueSize,
		QueueSizeRejectionThreshold:            tp.DynamicQueueSize,
		SemaphoreMaxConcurrentRequests:         tp.Concurrency,
		CircuitBreakerRequestVolumeThreshold:   cb.RequestVolumeThreshold,
		CircuitBreakerErrorThresholdPercentage: cb.ErrorThresholdPercentage,
		RollingStatsNumBuckets:                 m.NumBuckets,
		RollingPercentileNumBuckets:            m.NumBuckets,
		RollingPercentileBucketSize:            m.PercentileBucketSize,
	}

	for param, want := range durations {
		v, ok := readThrough(sink, p.Name(), param)
		if !ok || v.Kind() != KindMillis || v.Duration() != want {
			return fmt.Errorf("%s.%s = %v (%v), want %v", p.Name(), param, v.Duration(), ok, want)
		}
	}
	for param, want := range ints {
		v, ok := readThrough(sink, p.Name(), param)
		if !ok || v.Kind() != KindInt || v.Int() != int64(want) {
			return fmt.Errorf("%s.%s = %d (%v), want %d", p.Name(), param, v.Int(), ok, want)
		}
	}
	if v, ok := readThrough(sink, p.Name(), IsolationStrategy); !ok || v.String() != tp.Isolation.String() {
		return fmt.Errorf("%s.%s = %q (%v), want %s", p.Name(), IsolationStrategy, v, ok, tp.Isolation)
	}
	return nil
}

func emitToSink(t *testing.T, snap *policy.Snapshot, compact bool) *MapSink {
	t.Helper()
	var opts []Option
	if compact {
		opts = append(opts, WithCompact())
	}
	sink := NewMapSink()
	if err := Emit(Render(snap, opts...), sink); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	return sink
}

func TestEmit_SinkRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *policy.Config
		wantField string
	}{
		{
			name: "command inheriting everything",
			cfg: &policy.Config{
				Defaults: &policy.DefaultPolicy{ThreadPool: &policy.ThreadPoolPolicy{Concurrency: 10, Timeout: 750 * time.Millisecond}},
				Commands: []policy.CommandSpec{{Name: "orders"}, {Name: "payments", ThreadPool: &policy.ThreadPoolPolicy{Concurrency: 99, Timeout: time.Second}}},
			},
		},
		{
			name: "command named like the default scope",
			cfg: &policy.Config{Commands: []policy.CommandSpec{
				{Name: "default", ThreadPool: &policy.ThreadPoolPolicy{Concurrency: 99, Timeout: time.Second}},
				{Name: "orders"},
			}},
			wantField: "name",
		},
		{
			name: "dotted command name",
			cfg: &policy.Config{Commands: []policy.CommandSpec{
				{Name: "orders.coreSize", ThreadPool: &policy.ThreadPoolPolicy{Concurrency: 99, Timeout: time.Second}},
			}},
			wantField: "name",
		},
		{
			name: "sub-millisecond timeout",
			cfg: &policy.Config{Commands: []policy.CommandSpec{
				{Name: "orders", ThreadPool: &policy.ThreadPoolPolicy{Concurrency: 5, Timeout: 500 * time.Microsecond}},
			}},
			wantField: "thread_pool.timeout",
		},
		{
			name: "fractional default stats window",
			cfg: &policy.Config{
				Defaults: &policy.DefaultPolicy{Metrics: &policy.MetricsPolicy{
					StatsWindow:          10*time.Second + 500*time.Microsecond,
					NumBuckets:           10,
					PercentileWindow:     time.Minute,
					PercentileBucketSize: 100,
				}},
				Commands: []policy.CommandSpec{{Name: "orders"}},
			},
			wantField: "metrics.stats_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := compiler.Resolve(tt.cfg)
			if tt.wantField != "" {
				var ive *policy.InvalidPolicyValueError
				if !errors.As(err, &ive) || ive.Field != tt.wantField {
					t.Fatalf("Resolve() error = %v, want invalid %s", err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			for _, compact := range []bool{false, true} {
				sink := emitToSink(t, snap, compact)
				for _, p := range snap.Policies() {
					if err := sinkMatchesPolicy(sink, p); err != nil {
						t.Errorf("compact=%v: %v", compact, err)
					}
				}
			}
		})
	}
}

func TestProperty_SinkMatchesCompiler(t *testing.T) {
	props := gopter.NewProperties(testutil.DefaultTestParameters())

	props.Property("values read back from the sink equal resolved values", prop.ForAll(
		func(cfg *policy.Config, compact bool) bool {
			snap, err := compiler.Resolve(cfg)
			if err != nil {
				return false
			}
			sink := emitToSink(t, snap, compact)
			for _, p := range snap.Policies() {
				if sinkMatchesPolicy(sink, p) != nil {
					return false
				}
			}
			return true
		},
		testutil.GenConfig(),
		gen.Bool(),
	))

	props.Property("durations finer than a millisecond never resolve", prop.ForAll(
		func(cfg *policy.Config, offset time.Duration) bool {
			jittered, ok := withTimeoutOffset(cfg, offset)
			snap, err := compiler.Resolve(jittered)
			if !ok {
				return err == nil && snap != nil
			}
			var ive *policy.InvalidPolicyValueError
			return snap == nil && errors.As(err, &ive) && ive.Field == "thread_pool.timeout"
		},
		testutil.GenConfig(),
		testutil.GenSubMillis(),
	))

	props.TestingRun(t)
}

// withTimeoutOffset returns a copy of cfg with offset added to the first
// explicitly written thread pool timeout. ok is false when nothing changed.
func withTimeoutOffset(cfg *policy.Config, offset time.Duration) (*policy.Config, bool) {
	out := *cfg
	if offset == 0 {
		return &out, false
	}
	if out.Defaults != nil && out.Defaults.ThreadPool != nil {
		d := *out.Defaults
		tp := *d.ThreadPool
		tp.Timeout += offset
		d.ThreadPool = &tp
		out.Defaults = &d
		return &out, true
	}
	out.Commands = append([]policy.CommandSpec(nil), cfg.Commands...)
	for i := range out.Commands {
		if out.Commands[i].ThreadPool != nil {
			tp := *out.Commands[i].ThreadPool
			tp.Timeout += offset
			out.Commands[i].ThreadPool = &tp
			return &out, true
		}
	}
	return &out, false
}
