package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/history"
	"mercator-hq/bulwark/pkg/policy"
)

var historyFlags struct {
	limit  int
	keep   int
	output string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect snapshot install history",
	Long: `Inspect the history of installed snapshots.

Every successful install or reload by "bulwark run" is recorded with the
snapshot version, the source and revision it came from, and the full
resolved document.

Subcommands:
  list   - List recent installs
  show   - Show one install with its resolved document
  prune  - Delete all but the newest entries

Examples:
  # Last 10 installs
  bulwark history list --limit 10

  # One entry as YAML
  bulwark history show 6f1c... --output yaml

  # Keep the newest 50 entries
  bulwark history prune --keep 50`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent installs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one install",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest entries",
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyPruneCmd)

	historyCmd.PersistentFlags().StringVarP(&historyFlags.output, "output", "o", "text", "output format: text, json, yaml")
	historyListCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum entries to list (0 for all)")
	historyPruneCmd.Flags().IntVar(&historyFlags.keep, "keep", 0, "entries to keep (default from history.keep)")
}

func openHistory(cmd *cobra.Command) (history.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.History.Enabled {
		return nil, nil, cli.NewConfigError("history.enabled", "install history is disabled")
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		return nil, nil, cli.NewCommandError("history", err)
	}
	return store, cfg, nil
}

// historyList is the output of history list.
type historyList []*history.Entry

func (l historyList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No installs recorded")
		return err
	}
	fmt.Fprintf(w, "%-36s %-20s %-8s %-7s %8s %s\n", "ID", "INSTALLED", "OP", "SOURCE", "COMMANDS", "VERSION")
	for _, e := range l {
		fmt.Fprintf(w, "%-36s %-20s %-8s %-7s %8d %s\n",
			e.ID,
			e.InstalledAt.Local().Format(time.DateTime),
			e.Operation,
			e.Source,
			e.Commands,
			shortVersion(e.Version),
		)
	}
	return nil
}

// historyDetail is the output of history show.
type historyDetail struct {
	*history.Entry `yaml:",inline"`
	Snapshot *policy.Document `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

func (d *historyDetail) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "ID:        %s\n", d.ID)
	fmt.Fprintf(w, "Version:   %s\n", d.Version)
	fmt.Fprintf(w, "Operation: %s\n", d.Operation)
	fmt.Fprintf(w, "Source:    %s\n", d.Source)
	if d.Revision != "" {
		fmt.Fprintf(w, "Revision:  %s\n", d.Revision)
	}
	fmt.Fprintf(w, "Installed: %s\n\n", d.InstalledAt.Local().Format(time.RFC3339))
	if d.Snapshot == nil {
		return nil
	}
	r := &resolveResult{Version: d.Snapshot.Version, Commands: d.Snapshot.Commands}
	return r.WriteText(w)
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(historyFlags.output)
	if err != nil {
		return err
	}
	store, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), historyFlags.limit)
	if err != nil {
		return cli.NewCommandError("history list", err)
	}
	for _, e := range entries {
		e.Document = nil
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), historyList(entries))
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(historyFlags.output)
	if err != nil {
		return err
	}
	store, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("history show", err)
	}

	detail := &historyDetail{Entry: entry}
	if len(entry.Document) > 0 {
		var doc policy.Document
		if err := json.Unmarshal(entry.Document, &doc); err != nil {
			return cli.NewCommandError("history show", fmt.Errorf("decode snapshot document: %w", err))
		}
		detail.Snapshot = &doc
		detail.Entry.Document = nil
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), detail)
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, cfg, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	keep := cfg.History.Keep
	if cmd.Flags().Changed("keep") {
		keep = historyFlags.keep
	}

	removed, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return cli.NewCommandError("history prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d entries, kept the newest %d\n", removed, keep)
	return nil
}
