package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [skill]",
	Short: "Delete an installed skill",
	Long: `Delete removes a skill directory from the skills root. The deletion is
permanent; take a backup first if you have local changes worth keeping.

Example:
  skillman delete my-skill
  skillman delete my-skill --force`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		runDeleteCmd(args[0], force)
	},
}

func init() {
	deleteCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")
}

func runDeleteCmd(name string, force bool) {
	inventory, err := newInventory()
	if err != nil {
		presenter.Error(err, "Failed to open skills inventory")
		os.Exit(1)
	}

	record, err := inventory.Get(name)
	if err != nil {
		presenter.Error(err, "Failed to find skill")
		os.Exit(1)
	}

	if !force {
		answer := presenter.Prompt(fmt.Sprintf("Delete skill '%s' at %s?", record.Name, record.LocalPath), "y", "N")
		switch strings.ToLower(answer) {
		case "y", "yes":
		default:
			presenter.Info("Aborted.")
			return
		}
	}

	if err := os.RemoveAll(record.LocalPath); err != nil {
		presenter.Error(err, "Failed to delete skill directory")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Deleted skill '%s'", record.Name))
}
