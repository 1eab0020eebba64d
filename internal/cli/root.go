// Package cli implements the cobra-based CLI commands for disease-launcher.
//
// The root command itself checks the project and launches the web
// application. Each additional subcommand (check, status, stop) is defined
// in its own file within this package. This file defines the root command,
// the global flags and the exit code handling.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/disease-launcher/internal/console"
	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput switches check, status and stop output to JSON, and
	// errors to a JSON object on stderr.
	jsonOutput bool

	// verbose enables "[verbose]" trace lines on stderr.
	verbose bool

	// baseDir is the crop-disease project directory. Every relative path
	// in the configuration is resolved against it.
	baseDir string

	// configPath is an explicit config file, overriding discovery in baseDir.
	configPath string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// Run without a subcommand, it runs the startup checklist and then starts
// the web application in the foreground.
func NewRootCommand() *cobra.Command {
	rootCmd, _ := newRootCommand()
	return rootCmd
}

// newRootCommand also returns the launch flags bound to the root command.
func newRootCommand() (*cobra.Command, *runFlags) {
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "disease-launcher",
		Short: "Check and launch the Crop Disease Detection web application",
		Long: `disease-launcher validates a Crop Disease Detection project and starts its
web server.

Before launching it checks the Python version, installs the packages listed
in disease_requirements.txt, and verifies that the trained model, utility
modules and HTML templates are present. The server listens on 0.0.0.0:5000
with auto-reload enabled unless configured otherwise.

Examples:
  disease-launcher
  disease-launcher --dir ~/crop-app --port 8080
  disease-launcher --runtime docker --detach`,

		Args: cobra.NoArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd.Context(), cmd, flags)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", ".", "Project base directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: disease-launcher.yaml/.jsonc in the project directory)")

	flags.register(rootCmd, true)

	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewStopCommand())

	return rootCmd, flags
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// SIGINT and SIGTERM cancel the command's context instead of killing the
// process, so a running server is shut down cleanly and the launcher exits
// with status 0. CLIError types carry their own exit codes; other errors
// default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		// Checklist failures were already printed next to the check.
		if jsonOutput || !cliErr.Reported {
			printError(cliErr.Message, cliErr.Err)
		}
		os.Exit(int(cliErr.Code))
	}

	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// newPrinter returns the console printer for cmd. Quiet printers keep
// stdout free for a JSON document.
func newPrinter(cmd *cobra.Command, quiet bool) *console.Printer {
	return console.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), verbose, quiet)
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
