package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/policy/git"
)

var sourceFlags struct {
	limit  int
	output string
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Inspect the Git resilience source",
	Long: `Inspect the Git repository configured as the resilience source.

Subcommands:
  log  - Show the commit history of the repository

Examples:
  # Last 10 commits
  bulwark source log --limit 10`,
}

var sourceLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history of the Git source",
	RunE:  runSourceLog,
}

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceLogCmd)

	sourceLogCmd.Flags().IntVar(&sourceFlags.limit, "limit", 10, "maximum commits to show")
	sourceLogCmd.Flags().StringVarP(&sourceFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

type commitLog []*git.CommitInfo

func (l commitLog) WriteText(w io.Writer) error {
	for _, c := range l {
		fmt.Fprintf(w, "%s  %s  %-20s %s\n",
			c.Short(),
			c.Timestamp.Local().Format(time.DateTime),
			c.Author,
			firstLine(c.Message),
		)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func runSourceLog(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(sourceFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Source.Mode != "git" {
		return cli.NewConfigError("source.mode", fmt.Sprintf("source log requires git mode, have %q", cfg.Source.Mode))
	}

	repo, err := git.NewRepository(cfg.Source.Git)
	if err != nil {
		return cli.NewConfigError("source.git", err.Error())
	}
	if err := repo.Clone(cmd.Context()); err != nil {
		return cli.NewCommandError("source log", err)
	}
	if _, err := repo.Pull(cmd.Context()); err != nil {
		return cli.NewCommandError("source log", err)
	}

	commits, err := repo.History(sourceFlags.limit)
	if err != nil {
		return cli.NewCommandError("source log", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), commitLog(commits))
}
