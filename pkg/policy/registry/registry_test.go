package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/compiler"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustResolve(t testing.TB, names ...string) *policy.Snapshot {
	t.Helper()
	cfg := &policy.Config{}
	for _, n := range names {
		cfg.Commands = append(cfg.Commands, policy.CommandSpec{Name: n})
	}
	snap, err := compiler.Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return snap
}

type countingRecorder struct {
	mu       sync.Mutex
	lookups  map[string]int
	installs map[string]int
	failures int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{lookups: map[string]int{}, installs: map[string]int{}}
}

func (c *countingRecorder) RecordLookup(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups[result]++
}

func (c *countingRecorder) RecordInstall(op string, _ *policy.Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failures++
		return
	}
	c.installs[op]++
}

func TestRegistry_LookupBeforeInstall(t *testing.T) {
	reg := New(WithLogger(quietLogger()))

	if reg.State() != StateUninitialized {
		t.Fatalf("State() = %s, want UNINITIALIZED", reg.State())
	}

	_, err := reg.Lookup("orders")
	var nie *policy.NotInitializedError
	if !errors.As(err, &nie) {
		t.Fatalf("Lookup() error = %v, want NotInitializedError", err)
	}
	if !errors.Is(err, policy.ErrNotInitialized) {
		t.Error("error does not unwrap to ErrNotInitialized")
	}
	if reg.Snapshot() != nil || reg.Version() != "" || !reg.InstalledAt().IsZero() || reg.Names() != nil {
		t.Error("uninitialised registry exposes snapshot data")
	}
}

func TestRegistry_UnknownCommand(t *testing.T) {
	reg := New(WithLogger(quietLogger()))
	if err := reg.Install(mustResolve(t, "orders")); err != nil {
		t.Fatal(err)
	}

	_, err := reg.Lookup("payments")
	var uce *policy.UnknownCommandError
	if !errors.As(err, &uce) {
		t.Fatalf("Lookup() error = %v, want UnknownCommandError", err)
	}
	if uce.Command != "payments" {
		t.Errorf("Command = %q, want payments", uce.Command)
	}

	p, err := reg.Lookup("orders")
	if err != nil {
		t.Fatalf("Lookup(orders) error = %v", err)
	}
	if p.Name() != "orders" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestRegistry_ReinstallReject(t *testing.T) {
	rec := newCountingRecorder()
	reg := New(WithLogger(quietLogger()), WithRecorder(rec))

	first := mustResolve(t, "orders")
	if err := reg.Install(first); err != nil {
		t.Fatal(err)
	}
	installedAt := reg.InstalledAt()

	err := reg.Install(mustResolve(t, "payments"))
	if !errors.Is(err, policy.ErrAlreadyInstalled) {
		t.Fatalf("second Install() error = %v, want ErrAlreadyInstalled", err)
	}

	if reg.Snapshot() != first {
		t.Error("rejected install changed the active snapshot")
	}
	if !reg.InstalledAt().Equal(installedAt) {
		t.Error("rejected install changed InstalledAt")
	}
	if _, err := reg.Lookup("payments"); !errors.Is(err, policy.ErrUnknownCommand) {
		t.Errorf("payments visible after rejected install: %v", err)
	}
	if rec.installs[OpInstall] != 1 || rec.failures != 1 {
		t.Errorf("recorder installs=%v failures=%d", rec.installs, rec.failures)
	}
}

func TestRegistry_ReinstallSwap(t *testing.T) {
	reg := New(WithLogger(quietLogger()), WithReinstall(ReinstallSwap))

	if err := reg.Install(mustResolve(t, "orders")); err != nil {
		t.Fatal(err)
	}
	second := mustResolve(t, "payments")
	if err := reg.Install(second); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}

	if reg.Version() != second.Version() {
		t.Errorf("Version() = %s, want %s", reg.Version(), second.Version())
	}
	if _, err := reg.Lookup("orders"); !errors.Is(err, policy.ErrUnknownCommand) {
		t.Errorf("orders still visible after swap: %v", err)
	}
}

func TestRegistry_ReplaceIgnoresReinstallPolicy(t *testing.T) {
	reg := New(WithLogger(quietLogger()))

	// Replace also works from UNINITIALIZED.
	if err := reg.Replace(mustResolve(t, "a")); err != nil {
		t.Fatal(err)
	}
	if reg.State() != StateReady {
		t.Fatalf("State() = %s, want READY", reg.State())
	}
	if err := reg.Replace(mustResolve(t, "b")); err != nil {
		t.Fatal(err)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "b" {
		t.Errorf("Names() = %v, want [b]", names)
	}
}

func TestRegistry_InstallConfigIsAllOrNothing(t *testing.T) {
	reg := New(WithLogger(quietLogger()))

	_, err := reg.InstallConfig(&policy.Config{Commands: []policy.CommandSpec{{Name: "a"}, {Name: "a"}}})
	if !errors.Is(err, policy.ErrDuplicateCommand) {
		t.Fatalf("InstallConfig() error = %v, want ErrDuplicateCommand", err)
	}
	if reg.State() != StateUninitialized {
		t.Error("failed compile moved registry to READY")
	}

	snap, err := reg.InstallConfig(&policy.Config{Commands: []policy.CommandSpec{{Name: "a"}}})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Snapshot() != snap {
		t.Error("InstallConfig() did not install returned snapshot")
	}
}

func TestRegistry_InstallNil(t *testing.T) {
	reg := New(WithLogger(quietLogger()))
	if err := reg.Install(nil); err == nil {
		t.Error("Install(nil) succeeded")
	}
	if err := reg.Replace(nil); err == nil {
		t.Error("Replace(nil) succeeded")
	}
}

func TestRegistry_ConcurrentLookupsDuringReplace(t *testing.T) {
	reg := New(WithLogger(quietLogger()))
	a := mustResolve(t, "shared", "only-a")
	b := mustResolve(t, "shared", "only-b")
	if err := reg.Install(a); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 16)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := reg.Lookup("shared"); err != nil {
					errs <- err
					return
				}
				snap := reg.Snapshot()
				_, hasA := snap.Get("only-a")
				_, hasB := snap.Get("only-b")
				if hasA == hasB {
					errs <- errors.New("observed a mixed snapshot")
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		next := a
		if i%2 == 0 {
			next = b
		}
		if err := reg.Replace(next); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestRegistry_RecorderCountsLookups(t *testing.T) {
	rec := newCountingRecorder()
	reg := New(WithLogger(quietLogger()), WithRecorder(rec))

	_, _ = reg.Lookup("x")
	_ = reg.Install(mustResolve(t, "x"))
	_, _ = reg.Lookup("x")
	_, _ = reg.Lookup("y")

	want := map[string]int{LookupNotInitialized: 1, LookupHit: 1, LookupUnknown: 1}
	for k, v := range want {
		if rec.lookups[k] != v {
			t.Errorf("lookups[%s] = %d, want %d", k, rec.lookups[k], v)
		}
	}
}

func TestParseReinstallPolicy(t *testing.T) {
	for in, want := range map[string]ReinstallPolicy{"": ReinstallReject, "reject": ReinstallReject, "swap": ReinstallSwap} {
		got, err := ParseReinstallPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseReinstallPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseReinstallPolicy("merge"); err == nil {
		t.Error("ParseReinstallPolicy(merge) succeeded")
	}
}

func TestRegistry_InstalledAtAdvances(t *testing.T) {
	reg := New(WithLogger(quietLogger()))
	before := time.Now()
	_ = reg.Install(mustResolve(t, "x"))
	if reg.InstalledAt().Before(before) {
		t.Error("InstalledAt() earlier than install call")
	}
}

func BenchmarkRegistry_Lookup(b *testing.B) {
	reg := New(WithLogger(quietLogger()))
	_ = reg.Install(mustResolve(b, "orders", "payments", "inventory"))

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := reg.Lookup("payments"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func TestRegistry_LookupVersionMatchesPolicy(t *testing.T) {
	snapWith := func(concurrency int) *policy.Snapshot {
		snap, err := compiler.Resolve(&policy.Config{Commands: []policy.CommandSpec{{
			Name:       "shared",
			ThreadPool: &policy.ThreadPoolPolicy{Concurrency: concurrency, Timeout: time.Second},
		}}})
		if err != nil {
			t.Fatal(err)
		}
		return snap
	}
	a, b := snapWith(1), snapWith(2)
	want := map[string]int{a.Version(): 1, b.Version(): 2}

	reg := New(WithLogger(quietLogger()))
	if _, _, err := reg.LookupVersion("shared"); !errors.Is(err, policy.ErrNotInitialized) {
		t.Fatalf("LookupVersion() before install error = %v", err)
	}
	if err := reg.Install(a); err != nil {
		t.Fatal(err)
	}
	if _, v, err := reg.LookupVersion("missing"); !errors.Is(err, policy.ErrUnknownCommand) || v != a.Version() {
		t.Fatalf("LookupVersion(missing) = %q, %v", v, err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p, version, err := reg.LookupVersion("shared")
				if err != nil {
					errs <- err
					return
				}
				if p.ThreadPool().Concurrency != want[version] {
					errs <- fmt.Errorf("version %s returned with concurrency %d", version, p.ThreadPool().Concurrency)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		next := a
		if i%2 == 0 {
			next = b
		}
		if err := reg.Replace(next); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
