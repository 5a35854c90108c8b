package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/bulwark/pkg/cli"
	"mercator-hq/bulwark/pkg/policy/properties"
)

var propertiesFlags struct {
	file    string
	prefix  string
	compact bool
	output  string
}

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "Render the flat property key space",
	Long: `Render the resolved resilience configuration as flat properties, one
key per parameter: "<prefix>.default.<param>" for the defaults and
"<prefix>.<command>.<param>" for each command.

Examples:
  # .properties output
  bulwark properties --file resilience.yaml

  # Only keys that differ from the defaults
  bulwark properties --file resilience.yaml --compact

  # As a JSON object
  bulwark properties --file resilience.yaml --output json`,
	RunE: runProperties,
}

func init() {
	rootCmd.AddCommand(propertiesCmd)

	propertiesCmd.Flags().StringVarP(&propertiesFlags.file, "file", "f", "", "resilience file (overrides the configured source)")
	propertiesCmd.Flags().StringVar(&propertiesFlags.prefix, "prefix", "", "key prefix (default from registry.property_prefix)")
	propertiesCmd.Flags().BoolVar(&propertiesFlags.compact, "compact", false, "omit command keys equal to the defaults")
	propertiesCmd.Flags().StringVarP(&propertiesFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

func runProperties(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(propertiesFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFileOverride(cfg, propertiesFlags.file)

	snap, err := preview(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("properties", err)
	}

	prefix := cfg.Registry.PropertyPrefix
	if cmd.Flags().Changed("prefix") {
		prefix = propertiesFlags.prefix
	}
	opts := []properties.Option{properties.WithPrefix(prefix)}
	if propertiesFlags.compact {
		opts = append(opts, properties.WithCompact())
	}
	set := properties.Render(snap, opts...)

	if format == cli.FormatText {
		_, err := set.WriteTo(cmd.OutOrStdout())
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), set.Map())
}
