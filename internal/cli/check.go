// Package cli: check.go implements the "disease-launcher check" command.
//
// The check command runs the same startup checklist as a launch but stops
// before the application is started. With --json the results are printed
// as a single JSON document, which makes it usable from CI.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/launcher"
	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/preflight"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the startup checklist without launching the application",
		Long: `Run the startup checklist without launching the application.

The checks run in order and stop at the first failure: Python version,
requirements file, package installation, model file, utility modules,
templates and listen address.

Examples:
  disease-launcher check
  disease-launcher check --skip-install --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd, flags)
		},
	}

	flags.register(cmd, false)
	return cmd
}

// checkReport is the JSON output of the check command.
type checkReport struct {
	BaseDir string              `json:"baseDir"`
	Runtime string              `json:"runtime"`
	Address string              `json:"address"`
	Passed  bool                `json:"passed"`
	Checks  []model.CheckResult `json:"checks"`
}

// buildCheckReport assembles the JSON report from checklist results.
func buildCheckReport(cfg *config.Config, results []model.CheckResult, runErr error) checkReport {
	if results == nil {
		results = []model.CheckResult{}
	}
	return checkReport{
		BaseDir: cfg.BaseDir,
		Runtime: cfg.Runtime.String(),
		Address: cfg.Address(),
		Passed:  runErr == nil && model.Passed(results),
		Checks:  results,
	}
}

// runCheck runs the checklist and reports the results.
func runCheck(ctx context.Context, cmd *cobra.Command, f *runFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	out := newPrinter(cmd, IsJSONOutput())
	out.Banner(launcher.Title)

	results, runErr := preflight.NewChecker(cfg, preflight.WithPrinter(out)).Run(ctx)

	if IsJSONOutput() {
		if err := writeJSON(cmd.OutOrStdout(), buildCheckReport(cfg, results, runErr)); err != nil {
			return err
		}
		return runErr
	}

	if runErr != nil {
		return runErr
	}
	out.Blank()
	out.Line("All checks passed. Run disease-launcher to start the server.")
	return nil
}
