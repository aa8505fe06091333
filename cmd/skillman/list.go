package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed skills",
	Long: `List every skill installed under the skills root, with the source
repository and commit recorded in its metadata header.

Example:
  skillman list
  skillman list --json`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		runListCmd(jsonOut)
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "Output the skill list as JSON")
}

func runListCmd(jsonOut bool) {
	inventory, err := newInventory()
	if err != nil {
		presenter.Error(err, "Failed to open skills inventory")
		os.Exit(1)
	}

	records, err := inventory.Scan()
	if err != nil {
		presenter.Error(err, "Failed to scan skills")
		os.Exit(1)
	}

	if jsonOut {
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to serialize skill list")
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if len(records) == 0 {
		presenter.Info(fmt.Sprintf("No skills installed under %s", inventory.Root()))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tCOMMIT\tSOURCE")
	for _, record := range records {
		version := record.DeclaredVersion
		if version == "" {
			version = "-"
		}
		source := record.SourceURL
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.Name, version, shortHash(record.RecordedHash), source)
	}
	w.Flush()
}
