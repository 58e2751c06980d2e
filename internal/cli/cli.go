package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/pagecost/internal/app"
	"github.com/vk/pagecost/internal/recording"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pagecost", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pagecost - Estimate how much faster a page would load without wasted bytes.

Usage:
  pagecost [options] -trace FILE -netlog FILE

Both recordings may also be http(s) URLs. Results are written to stdout as
a JSON array, logs to stderr.

Options:
`)
		flagSet.PrintDefaults()
	}

	traceFlag := flagSet.String("trace", "", "Path or URL of the performance trace (JSON).")
	netlogFlag := flagSet.String("netlog", "", "Path or URL of the network log (JSON).")
	configFlag := flagSet.String("config", "", "Path to an .hcl configuration file or directory.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the /health and /metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Number of audits run concurrently. 0 means one per CPU.")
	timeoutFlag := flagSet.Duration("fetch-timeout", recording.DefaultFetchTimeout, "Timeout for recordings fetched over HTTP.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if *traceFlag == "" && *netlogFlag == "" && flagSet.NArg() == 0 {
		slog.Debug("No recording provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must not be negative"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		TracePath:    *traceFlag,
		NetlogPath:   *netlogFlag,
		ConfigPath:   *configFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		MetricsPort:  *metricsPortFlag,
		WorkerCount:  *workersFlag,
		FetchTimeout: *timeoutFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
