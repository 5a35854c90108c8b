package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/policy"
)

// DefaultMaxCommands bounds the number of commands exported by the
// per-command policy gauges.
const DefaultMaxCommands = 1000

// Collector owns every Bulwark Prometheus metric. It implements
// registry.Recorder so it can be passed straight to registry.WithRecorder.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	registryMetrics *RegistryMetrics
	policyMetrics   *PolicyMetrics
	sourceMetrics   *SourceMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil a new one is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	reg := registry.New(registry.WithRecorder(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.ResolveDurationBuckets) == 0 {
		cfg.ResolveDurationBuckets = append([]float64(nil), config.DefaultResolveDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		registryMetrics:    NewRegistryMetrics(cfg, registry),
		policyMetrics:      NewPolicyMetrics(cfg, registry),
		sourceMetrics:      NewSourceMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(DefaultMaxCommands),
	}
}

// RecordLookup counts one registry lookup by result
// ("hit", "unknown", "not_initialized").
func (c *Collector) RecordLookup(result string) {
	if !c.config.Enabled {
		return
	}

	c.registryMetrics.RecordLookup(result)
}

// RecordInstall counts one install or replace attempt. On success the
// snapshot gauges and the per-command policy gauges are refreshed.
func (c *Collector) RecordInstall(op string, snap *policy.Snapshot, err error) {
	if !c.config.Enabled {
		return
	}

	if err != nil {
		c.registryMetrics.RecordInstall(op, "error")
		return
	}
	c.registryMetrics.RecordInstall(op, "success")
	if snap == nil {
		return
	}

	c.registryMetrics.UpdateSnapshot(snap.Version(), snap.Len(), time.Now())

	policies := make([]*policy.ResolvedPolicy, 0, snap.Len())
	for _, p := range snap.Policies() {
		if c.cardinalityLimiter.Allow(p.Name()) {
			policies = append(policies, p)
		}
	}
	c.policyMetrics.Update(policies)
}

// RecordResolve records one compilation and the number of errors it
// produced.
func (c *Collector) RecordResolve(duration time.Duration, errCount int) {
	if !c.config.Enabled {
		return
	}

	c.sourceMetrics.RecordResolve(duration, errCount)
}

// RecordReload records one load or reload from source ("inline", "file",
// "git") with result "success", "error" or "unchanged".
func (c *Collector) RecordReload(source, result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.sourceMetrics.RecordReload(source, result, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet may be exported. Known label sets are
// always allowed; new ones only while the limit has not been reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
