// Package manager keeps a registry supplied with resolved resilience
// policies.
//
// A Manager reads the resilience configuration from one of three sources,
// compiles it with the compiler package and installs the snapshot into a
// registry:
//
//   - inline: the resilience section of the service configuration
//   - file: a standalone YAML or TOML file, watched with fsnotify
//   - git: a file in a Git repository, polled on a cron schedule
//
// # Basic Usage
//
//	reg := registry.New()
//	mgr, err := manager.New(cfg, reg, manager.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := mgr.Load(ctx); err != nil {
//	    return err
//	}
//	go mgr.Watch(ctx)
//
// # Reloads
//
// Reload compiles a fresh snapshot and replaces the installed one. A read,
// compile or install failure leaves the previous snapshot serving; the
// failure is returned and kept in LastLoadError for readiness checks. A
// reload that produces the version already installed is reported as
// unchanged and not recorded in history.
//
// FileWatcher coalesces bursts of file events through a Debouncer so an
// editor that writes in several steps triggers a single reload.
package manager
