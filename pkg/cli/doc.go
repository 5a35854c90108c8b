/*
Package cli provides command-line helpers for the bulwark command.

Output Formatting:

Results print as text, JSON or YAML:

	format, err := cli.ParseOutputFormat(flag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Values implementing TextWriter control their own text rendering.

Errors and Exit Codes:

ConfigError, CommandError and InvalidError classify failures; ExitCode maps
them to the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
