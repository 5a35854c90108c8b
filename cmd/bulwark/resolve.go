package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/manager"
	"mercator-hq/bulwark/pkg/policy/registry"
	"mercator-hq/bulwark/pkg/setter"
)

var resolveFlags struct {
	file    string
	command string
	output  string
	setters bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the resolved resilience policies",
	Long: `Read the resilience configuration, resolve every command against the
defaults and print the result. Nothing is installed.

Examples:
  # Resolve the source named in config.yaml
  bulwark resolve

  # Resolve a standalone file
  bulwark resolve --file resilience.yaml

  # One command, as YAML
  bulwark resolve --file resilience.yaml --command orders --output yaml

  # Include the execution library settings
  bulwark resolve --file resilience.yaml --setters --output json`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveFlags.file, "file", "f", "", "resilience file (overrides the configured source)")
	resolveCmd.Flags().StringVar(&resolveFlags.command, "command", "", "only print this command")
	resolveCmd.Flags().StringVarP(&resolveFlags.output, "output", "o", "text", "output format: text, json, yaml")
	resolveCmd.Flags().BoolVar(&resolveFlags.setters, "setters", false, "include the execution library settings")
}

// preview compiles the configured source without installing it.
func preview(ctx context.Context, cfg *config.Config) (*policy.Snapshot, error) {
	mgr, err := manager.New(cfg, registry.New(), manager.WithLogger(commandLogger()))
	if err != nil {
		return nil, cli.NewConfigError("source", err.Error())
	}
	defer mgr.Close()

	return mgr.Preview(ctx)
}

// resolveResult is the output of the resolve command.
type resolveResult struct {
	Version  string                    `json:"version" yaml:"version"`
	Defaults *policy.Defaults          `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Commands []policy.View             `json:"commands" yaml:"commands"`
	Setters  map[string]*setter.Setter `json:"setters,omitempty" yaml:"setters,omitempty"`
}

func (r *resolveResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Snapshot %s (%d commands)\n\n", r.Version, len(r.Commands))
	fmt.Fprintf(w, "%-24s %-10s %6s %11s %8s %5s %7s %8s %s\n",
		"COMMAND", "ISOLATION", "POOL", "QUEUE", "TIMEOUT", "ERR%", "VOLUME", "SLEEP", "FALLBACK")
	for _, c := range r.Commands {
		fmt.Fprintf(w, "%-24s %-10s %6d %11s %8s %5d %7d %8s %t\n",
			c.Name,
			c.ThreadPool.Isolation,
			c.ThreadPool.Concurrency,
			fmt.Sprintf("%d/%d", c.ThreadPool.DynamicQueueSize, c.ThreadPool.MaxQueueSize),
			c.ThreadPool.Timeout,
			c.CircuitBreaker.ErrorThresholdPercentage,
			c.CircuitBreaker.RequestVolumeThreshold,
			c.CircuitBreaker.SleepWindow,
			c.FallbackEnabled,
		)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(resolveFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFileOverride(cfg, resolveFlags.file)

	snap, err := preview(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("resolve", err)
	}

	result := &resolveResult{Version: snap.Version()}
	if resolveFlags.command != "" {
		p, ok := snap.Get(resolveFlags.command)
		if !ok {
			return cli.NewCommandError("resolve", &policy.UnknownCommandError{Command: resolveFlags.command})
		}
		result.Commands = []policy.View{p.View()}
	} else {
		defaults := snap.Defaults()
		result.Defaults = &defaults
		for _, p := range snap.Policies() {
			result.Commands = append(result.Commands, p.View())
		}
	}

	if resolveFlags.setters {
		result.Setters = make(map[string]*setter.Setter, len(result.Commands))
		for _, c := range result.Commands {
			p, _ := snap.Get(c.Name)
			result.Setters[c.Name] = setter.FromPolicy(p)
		}
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}
