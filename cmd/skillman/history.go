package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [skill]",
	Short: "Show recorded sync runs",
	Long: `History lists past sync runs, newest first, optionally filtered to a
single skill.

Example:
  skillman history
  skillman history my-skill
  skillman history --limit 50 --json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOut, _ := cmd.Flags().GetBool("json")

		skill := ""
		if len(args) > 0 {
			skill = args[0]
		}
		runHistoryCmd(ctx, skill, limit, jsonOut)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().Bool("json", false, "Output the runs as JSON")
}

func runHistoryCmd(ctx context.Context, skill string, limit int, jsonOut bool) {
	store, err := openHistory(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open sync history")
		os.Exit(1)
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, skill, limit)
	if err != nil {
		presenter.Error(err, "Failed to list sync runs")
		os.Exit(1)
	}

	if jsonOut {
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to serialize runs")
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if len(runs) == 0 {
		presenter.Info("No sync runs recorded.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSKILL\tCOMMIT\t+\t~\t-\tCONFLICTS\tCOMMITTED")
	for _, run := range runs {
		committed := "no"
		if run.MetadataCommitted {
			committed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format(time.RFC3339), run.Skill, shortHash(run.NewHash),
			run.Created, run.Updated, run.Deleted, run.Conflicts, committed)
	}
	w.Flush()
}
