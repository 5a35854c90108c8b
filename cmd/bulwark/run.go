package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/history"
	"mercator-hq/bulwark/pkg/policy/loader"
	"mercator-hq/bulwark/pkg/policy/manager"
	"mercator-hq/bulwark/pkg/policy/registry"
	"mercator-hq/bulwark/pkg/server"
	"mercator-hq/bulwark/pkg/telemetry"
	"mercator-hq/bulwark/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	file          string
	noWatch       bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Bulwark service",
	Long: `Start the Bulwark service with the specified configuration.

The service loads and installs the resilience configuration, keeps it
current (file watch or Git polling), records install history and serves
the admin API, probes and metrics.

Examples:
  # Start with default config
  bulwark run

  # Start with custom config
  bulwark run --config /etc/bulwark/config.yaml

  # Serve a standalone resilience file without watching it
  bulwark run --file resilience.yaml --no-watch

  # Load and install once, then exit
  bulwark run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override admin listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVarP(&runFlags.file, "file", "f", "", "resilience file (overrides the configured source)")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not watch the source for changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "load and install the configuration, then exit")
}

// service holds the running components so they can be closed in order.
type service struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	logger    *slog.Logger
	registry  *registry.Registry
	history   history.Store
	pruner    *history.Pruner
	manager   *manager.Manager
	server    *server.Server
}

func newService(cfg *config.Config, opts ...telemetry.Option) (*service, error) {
	tel, err := telemetry.New(&cfg.Telemetry, versionInfo(), opts...)
	if err != nil {
		return nil, cli.NewConfigError("telemetry", err.Error())
	}
	s := &service{cfg: cfg, telemetry: tel, logger: tel.Logger}

	reinstall, err := registry.ParseReinstallPolicy(cfg.Registry.Reinstall)
	if err != nil {
		return nil, cli.NewConfigError("registry.reinstall", err.Error())
	}
	s.registry = registry.New(
		registry.WithReinstall(reinstall),
		registry.WithLogger(tel.Logger),
		registry.WithRecorder(tel.Metrics),
	)

	mgrOpts := []manager.Option{
		manager.WithLogger(tel.Logger),
		manager.WithMetrics(tel.Metrics),
		manager.WithTracer(tel.Tracer),
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History)
		if err != nil {
			return nil, cli.NewCommandError("run", fmt.Errorf("open history: %w", err))
		}
		s.history = store
		s.pruner = history.NewPruner(store, cfg.History.Keep, cfg.History.PruneSchedule, tel.Logger)
		mgrOpts = append(mgrOpts, manager.WithHistory(store))
	}

	s.manager, err = manager.New(cfg, s.registry, mgrOpts...)
	if err != nil {
		s.close(context.Background())
		return nil, cli.NewConfigError("source", err.Error())
	}

	tel.Health.RegisterCheck("registry", health.RegistryCheck(s.registry))
	tel.Health.RegisterCheck("source", health.LastErrorCheck(s.manager.LastLoadError))
	srvOpts := []server.Option{server.WithReloader(s.manager)}
	if s.history != nil {
		tel.Health.RegisterCheck("history", health.PingCheck(s.history))
		srvOpts = append(srvOpts, server.WithHistory(s.history))
	}

	s.server, err = server.NewServer(cfg, s.registry, tel, srvOpts...)
	if err != nil {
		s.close(context.Background())
		return nil, cli.NewCommandError("run", err)
	}
	return s, nil
}

// run loads the configuration and serves until ctx is cancelled.
func (s *service) run(ctx context.Context, out io.Writer, watch bool) error {
	if err := s.manager.Load(ctx); err != nil {
		return runLoadError(out, err)
	}

	if s.pruner != nil {
		if err := s.pruner.Start(ctx); err != nil {
			s.logger.Warn("Failed to start history pruner", "error", err)
		}
	}

	var wg sync.WaitGroup
	if watch && s.manager.Source() != manager.ModeInline {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.manager.Watch(ctx); err != nil && !errors.Is(err, manager.ErrClosed) {
				s.logger.Error("Source watch stopped", "error", err)
			}
		}()
	}

	err := s.server.Start(ctx)
	_ = s.manager.Close()
	wg.Wait()
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// runLoadError reports a resilience file that was read but could not be
// decoded or compiled the way validate does, and exits with ExitInvalid.
// Any other load failure is a plain command error.
func runLoadError(w io.Writer, err error) error {
	var loadErr *manager.LoadError
	var parseErr *loader.ParseError
	if !errors.As(err, &loadErr) || (loadErr.Stage != manager.StageResolve && !errors.As(err, &parseErr)) {
		return cli.NewCommandError("run", err)
	}

	problems := flattenErrors(err)
	fmt.Fprintf(w, "✗ Resilience configuration invalid (%d errors)\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	return &cli.InvalidError{Errors: len(problems)}
}

func (s *service) close(ctx context.Context) {
	if s.manager != nil {
		_ = s.manager.Close()
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("Failed to close history store", "error", err)
		}
	}
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Warn("Failed to flush telemetry", "error", err)
	}
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	applyFileOverride(cfg, runFlags.file)
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	defer svc.close(context.Background())
	slog.SetDefault(svc.logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bulwark v%s\n", Version)
	fmt.Fprintf(out, "✓ Configuration loaded (source: %s)\n", svc.manager.Source())

	if runFlags.dryRun {
		if err := svc.manager.Load(cmd.Context()); err != nil {
			return runLoadError(out, err)
		}
		fmt.Fprintf(out, "✓ Snapshot %s installed (%d commands)\n", svc.registry.Version(), svc.registry.Snapshot().Len())
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	fmt.Fprintf(out, "✓ Admin server on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := svc.run(ctx, out, cfg.Source.Watch && !runFlags.noWatch); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}
