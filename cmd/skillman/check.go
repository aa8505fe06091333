package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jingkaihe/skillman/pkg/gitremote"
	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/jingkaihe/skillman/pkg/status"
	"github.com/spf13/cobra"
)

// CheckConfig holds configuration for the check command
type CheckConfig struct {
	JSON        bool
	Concurrency int
	NoDistance  bool
}

// NewCheckConfig creates a new CheckConfig with default values
func NewCheckConfig() *CheckConfig {
	return &CheckConfig{
		JSON:        false,
		Concurrency: 5,
		NoDistance:  false,
	}
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every tracked skill against its upstream repository",
	Long: `Check compares the commit recorded in each skill's SKILL.md header with
the current HEAD of its source repository. The check is read-only: no skill
is modified and no file tree is downloaded.

Example:
  skillman check
  skillman check --json
  skillman check --concurrency 10 --no-distance`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getCheckConfigFromFlags(cmd)
		runCheckCmd(ctx, config)
	},
}

func init() {
	checkDefaults := NewCheckConfig()
	checkCmd.Flags().Bool("json", checkDefaults.JSON, "Output the report as JSON")
	checkCmd.Flags().Int("concurrency", checkDefaults.Concurrency, "Maximum parallel upstream lookups")
	checkCmd.Flags().Bool("no-distance", checkDefaults.NoDistance, "Skip the commit-distance lookup for stale skills")
}

// getCheckConfigFromFlags extracts check configuration from command flags
func getCheckConfigFromFlags(cmd *cobra.Command) *CheckConfig {
	config := NewCheckConfig()

	if jsonOut, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOut
	}
	if concurrency, err := cmd.Flags().GetInt("concurrency"); err == nil {
		config.Concurrency = concurrency
	}
	if noDistance, err := cmd.Flags().GetBool("no-distance"); err == nil {
		config.NoDistance = noDistance
	}

	return config
}

func runCheckCmd(ctx context.Context, config *CheckConfig) {
	inventory, err := newInventory()
	if err != nil {
		presenter.Error(err, "Failed to open skills inventory")
		os.Exit(1)
	}

	opts := []status.ReporterOption{status.WithConcurrency(config.Concurrency)}
	if config.NoDistance {
		opts = append(opts, status.WithoutDistance())
	}
	reporter := status.NewReporter(inventory, gitremote.NewGitCLI(), opts...)

	report, err := reporter.Run(ctx)
	if err != nil {
		presenter.Error(err, "Failed to check skills")
		os.Exit(1)
	}

	if config.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to serialize report")
			os.Exit(1)
		}
		fmt.Println(string(out))
	} else {
		renderCheckReport(report)
	}

	if err := report.Err(); err != nil {
		os.Exit(1)
	}
}

func renderCheckReport(report *status.Report) {
	if report.Total == 0 {
		presenter.Info("No skills installed.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tRECORDED\tREMOTE\tDETAIL")
	for _, s := range report.Skills {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.State, shortHash(s.RecordedHash), shortHash(s.RemoteHash), s.Message)
	}
	w.Flush()

	presenter.Separator()
	presenter.Info(fmt.Sprintf("%d skill(s): %d current, %d stale, %d unknown",
		report.Total, report.Current, report.Stale, report.Unknown))
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	if hash == "" {
		return "-"
	}
	return hash
}
