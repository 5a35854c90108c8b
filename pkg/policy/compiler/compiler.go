package compiler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"mercator-hq/bulwark/pkg/policy"
)

// Resolve compiles cfg into an immutable snapshot.
//
// Defaults are completed from the built-ins first, then each command's
// sub-policies are taken verbatim or inherited whole from the completed
// defaults. Every problem found is collected; if there is at least one, no
// snapshot is returned and the error is a *policy.ErrorList.
//
// Resolve performs no I/O and touches no global state.
func Resolve(cfg *policy.Config) (*policy.Snapshot, error) {
	var defaults *policy.DefaultPolicy
	var commands []policy.CommandSpec
	if cfg != nil {
		defaults = cfg.Defaults
		commands = cfg.Commands
	}

	errs := &policy.ErrorList{}

	completed := CompleteDefaults(defaults)
	for _, err := range completed.Validate() {
		errs.Add(err)
	}

	resolved := make(map[string]*policy.ResolvedPolicy, len(commands))
	firstIndex := make(map[string]int, len(commands))

	for i := range commands {
		spec := &commands[i]

		if spec.Name == "" {
			errs.Add(&policy.InvalidPolicyValueError{
				Command: fmt.Sprintf("commands[%d]", i),
				Field:   "name",
				Value:   spec.Name,
				Message: "must not be empty",
			})
			continue
		}
		if msg := checkName(spec.Name); msg != "" {
			errs.Add(&policy.InvalidPolicyValueError{
				Command: fmt.Sprintf("commands[%d]", i),
				Field:   "name",
				Value:   spec.Name,
				Message: msg,
			})
			continue
		}

		if first, seen := firstIndex[spec.Name]; seen {
			errs.Add(&policy.DuplicateCommandError{
				Command:     spec.Name,
				FirstIndex:  first,
				SecondIndex: i,
			})
			continue
		}
		firstIndex[spec.Name] = i

		p, perrs := merge(spec, completed)
		for _, err := range perrs {
			errs.Add(err)
		}
		if len(perrs) == 0 {
			resolved[spec.Name] = p
		}
	}

	if errs.HasErrors() {
		return nil, errs
	}

	version, err := versionOf(completed, resolved)
	if err != nil {
		return nil, fmt.Errorf("compute snapshot version: %w", err)
	}

	return policy.NewSnapshot(completed, resolved, version), nil
}

// CompleteDefaults fills every absent sub-policy of d from the built-ins.
// Sub-policies that are present are kept as written; an empty isolation mode
// is read as THREAD.
func CompleteDefaults(d *policy.DefaultPolicy) policy.Defaults {
	out := policy.BuiltinDefaults()
	if d == nil {
		return out
	}

	if d.ThreadPool != nil {
		out.ThreadPool = normalizeThreadPool(*d.ThreadPool)
	}
	if d.CircuitBreaker != nil {
		out.CircuitBreaker = *d.CircuitBreaker
	}
	if d.Metrics != nil {
		out.Metrics = *d.Metrics
	}
	return out
}

// merge picks each sub-policy slot from the command or, when absent, from the
// completed defaults. The command's own sub-policies are validated here;
// inherited ones were validated with the defaults.
func merge(spec *policy.CommandSpec, defaults policy.Defaults) (*policy.ResolvedPolicy, []error) {
	var errs []error

	tp := defaults.ThreadPool
	if spec.ThreadPool != nil {
		tp = normalizeThreadPool(*spec.ThreadPool)
		errs = append(errs, tp.Validate(spec.Name)...)
	}

	cb := defaults.CircuitBreaker
	if spec.CircuitBreaker != nil {
		cb = *spec.CircuitBreaker
		errs = append(errs, cb.Validate(spec.Name)...)
	}

	m := defaults.Metrics
	if spec.Metrics != nil {
		m = *spec.Metrics
		errs = append(errs, m.Validate(spec.Name)...)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return policy.NewResolvedPolicy(spec.Name, tp, cb, m, spec.FallbackEnabled), nil
}

// checkName rejects names that would collide with the default property scope
// or produce ambiguous flat property keys.
func checkName(name string) string {
	switch {
	case name == policy.DefaultScope:
		return fmt.Sprintf("%q is reserved for the default policy", policy.DefaultScope)
	case strings.Contains(name, "."):
		return "must not contain '.'"
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return "must not contain whitespace"
	}
	return ""
}

func normalizeThreadPool(tp policy.ThreadPoolPolicy) policy.ThreadPoolPolicy {
	if tp.Isolation == "" {
		tp.Isolation = policy.IsolationThread
	}
	return tp
}

// versionOf hashes the canonical JSON form of the resolved content. The
// result is stable for equal inputs regardless of command order.
func versionOf(defaults policy.Defaults, resolved map[string]*policy.ResolvedPolicy) (string, error) {
	doc := policy.NewSnapshot(defaults, resolved, "").Document()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:16], nil
}
