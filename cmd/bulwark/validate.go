package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/manager"
)

var validateFlags struct {
	file   string
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the resilience configuration",
	Long: `Read and resolve the resilience configuration without installing it.

Every problem is reported, not just the first: duplicate command names,
empty names and out-of-range values. The command exits with status 3 when
the configuration is invalid and 2 when the service config cannot be
loaded.

Examples:
  # Validate the configured source
  bulwark validate

  # Validate a file, for example in CI
  bulwark validate --file resilience.yaml

  # Machine-readable report
  bulwark validate --file resilience.yaml --output json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "resilience file (overrides the configured source)")
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

// validateReport is the output of the validate command.
type validateReport struct {
	Valid    bool     `json:"valid" yaml:"valid"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Commands int      `json:"commands" yaml:"commands"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *validateReport) WriteText(w io.Writer) error {
	if r.Valid {
		_, err := fmt.Fprintf(w, "✓ Resilience configuration valid (%d commands, version %s)\n", r.Commands, r.Version)
		return err
	}
	fmt.Fprintf(w, "✗ Resilience configuration invalid (%d errors)\n", len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	return nil
}

// flattenErrors lists the individual problems in err.
func flattenErrors(err error) []string {
	var list *policy.ErrorList
	if errors.As(err, &list) {
		out := make([]string, 0, list.Len())
		for _, e := range list.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	var loadErr *manager.LoadError
	if errors.As(err, &loadErr) && loadErr.Cause != nil {
		return []string{loadErr.Cause.Error()}
	}
	return []string{err.Error()}
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFileOverride(cfg, validateFlags.file)

	report := &validateReport{}
	snap, err := preview(cmd.Context(), cfg)

	var loadErr *manager.LoadError
	switch {
	case err == nil:
		report.Valid = true
		report.Version = snap.Version()
		report.Commands = snap.Len()
	case errors.As(err, &loadErr):
		report.Errors = flattenErrors(err)
	default:
		return err
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid {
		return &cli.InvalidError{Errors: len(report.Errors)}
	}
	return nil
}
