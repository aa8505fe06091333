package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jingkaihe/skillman/pkg/diffplan"
	"github.com/jingkaihe/skillman/pkg/gitremote"
	"github.com/jingkaihe/skillman/pkg/history"
	"github.com/jingkaihe/skillman/pkg/logger"
	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/jingkaihe/skillman/pkg/skills"
	"github.com/jingkaihe/skillman/pkg/syncer"
	"github.com/jingkaihe/skillman/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// SyncConfig holds configuration for the sync command
type SyncConfig struct {
	DryRun bool
	Backup bool
	JSON   bool
}

// NewSyncConfig creates a new SyncConfig with default values
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		DryRun: false,
		Backup: false,
		JSON:   false,
	}
}

var syncCmd = &cobra.Command{
	Use:   "sync [skill]",
	Short: "Sync a skill with its upstream repository",
	Long: `Sync resolves the skill's source repository to a commit, downloads a
snapshot of its tree, and applies the differences to the local skill
directory. Files you added locally are never deleted; files you edited
locally are skipped as conflicts rather than overwritten.

The skill may be given as a name under the skills root or as a path.

Example:
  skillman sync my-skill
  skillman sync my-skill --dry-run
  skillman sync ./path/to/skill --backup
  skillman sync my-skill --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getSyncConfigFromFlags(cmd)
		runSyncCmd(ctx, args[0], config)
	},
}

func init() {
	syncDefaults := NewSyncConfig()
	syncCmd.Flags().Bool("dry-run", syncDefaults.DryRun, "Show what would change without writing anything")
	syncCmd.Flags().Bool("backup", syncDefaults.Backup, "Take a timestamped backup of the skill directory before applying")
	syncCmd.Flags().Bool("json", syncDefaults.JSON, "Output the result as JSON")
}

// getSyncConfigFromFlags extracts sync configuration from command flags
func getSyncConfigFromFlags(cmd *cobra.Command) *SyncConfig {
	config := NewSyncConfig()

	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if backup, err := cmd.Flags().GetBool("backup"); err == nil {
		config.Backup = backup
	}
	if jsonOut, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOut
	}

	return config
}

func runSyncCmd(ctx context.Context, identifier string, config *SyncConfig) {
	inventory, err := newInventory()
	if err != nil {
		presenter.Error(err, "Failed to open skills inventory")
		os.Exit(1)
	}

	skillDir, err := inventory.ResolvePath(identifier)
	if err != nil {
		presenter.Error(err, "Failed to resolve skill")
		os.Exit(1)
	}

	record, err := skills.LoadRecord(skillDir)
	if err != nil {
		presenter.Error(err, fmt.Sprintf("Failed to read %s", skills.SkillFileName))
		os.Exit(1)
	}
	if !record.HasSource() {
		presenter.Error(errors.New("no github_url recorded"), fmt.Sprintf("Skill '%s' does not track an upstream repository", record.Name))
		os.Exit(1)
	}

	ref, err := gitremote.ParseLocator(record.SourceURL)
	if err != nil {
		presenter.Error(err, "Invalid source repository URL")
		os.Exit(1)
	}

	remote := gitremote.NewGitCLI()

	var resolved gitremote.ResolvedCommit
	err = telemetry.WithSpan(ctx, "sync.resolve", func(ctx context.Context) error {
		var err error
		resolved, err = remote.ResolveRef(ctx, ref)
		return err
	}, attribute.String("skill.name", record.Name))
	if err != nil {
		presenter.Error(err, "Failed to resolve upstream reference")
		os.Exit(1)
	}
	logger.G(ctx).WithField("skill", record.Name).WithField("commit", resolved.CommitHash).Debug("resolved upstream")

	var snapshot *gitremote.Snapshot
	err = telemetry.WithSpan(ctx, "sync.fetch", func(ctx context.Context) error {
		var err error
		snapshot, err = remote.FetchSnapshot(ctx, resolved)
		return err
	}, attribute.String("commit.hash", resolved.CommitHash))
	if err != nil {
		presenter.Error(err, "Failed to fetch upstream snapshot")
		os.Exit(1)
	}
	// The metadata header is rewritten separately; upstream copies never
	// overwrite it.
	delete(snapshot.Files, skills.SkillFileName)

	local, err := diffplan.LocalSet(skillDir)
	if err != nil {
		presenter.Error(err, "Failed to read local skill directory")
		os.Exit(1)
	}

	store, err := openHistory(ctx)
	if err != nil {
		presenter.Error(err, "Failed to open sync history")
		os.Exit(1)
	}
	defer store.Close()

	previous, err := store.LatestManifest(ctx, record.Name)
	if err != nil {
		presenter.Error(err, "Failed to load previous sync manifest")
		os.Exit(1)
	}

	plan := diffplan.NewPlanner().Compute(snapshot.Commit, skillDir, snapshot.Files, local, previous)
	executor := syncer.NewExecutor()

	if config.DryRun {
		if config.JSON {
			out, err := json.MarshalIndent(plan.Actions, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to serialize plan")
				os.Exit(1)
			}
			fmt.Println(string(out))
		} else {
			fmt.Print(executor.Preview(plan, local))
		}
		return
	}

	var result *syncer.Result
	err = telemetry.WithSpan(ctx, "sync.apply", func(ctx context.Context) error {
		var err error
		result, err = executor.Apply(ctx, plan, syncer.Options{Backup: config.Backup})
		return err
	}, attribute.Int("plan.actions", len(plan.Actions)))
	if err != nil {
		presenter.Error(err, "Sync failed")
		os.Exit(1)
	}

	run := history.Run{
		ID:                result.RunID,
		Skill:             record.Name,
		OldHash:           result.OldHash,
		NewHash:           result.NewHash,
		Created:           result.Created,
		Updated:           result.Updated,
		Deleted:           result.Deleted,
		Conflicts:         len(result.Conflicts),
		BackupPath:        result.BackupPath,
		MetadataCommitted: result.MetadataCommitted,
		StartedAt:         result.StartedAt,
		DurationMS:        result.DurationMS,
	}
	if err := store.RecordRun(ctx, run, plan.Manifest); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to record sync run")
	}

	if config.JSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to serialize result")
			os.Exit(1)
		}
		fmt.Println(string(out))
	} else {
		renderSyncResult(record.Name, result, plan)
	}

	if err := result.ConflictError(); err != nil {
		if !config.JSON {
			presenter.Error(err, "Sync incomplete")
		}
		os.Exit(1)
	}
}

func renderSyncResult(name string, result *syncer.Result, plan *diffplan.Plan) {
	if plan.Empty() {
		presenter.Success(fmt.Sprintf("Skill '%s' is already up to date at %s", name, shortHash(result.NewHash)))
		return
	}

	for _, conflict := range result.Conflicts {
		presenter.Warning(fmt.Sprintf("conflict: %s (%s)", conflict.Path, conflict.Reason))
	}

	if result.BackupPath != "" {
		presenter.Info(fmt.Sprintf("Backup: %s", result.BackupPath))
	}

	summary := fmt.Sprintf("Synced '%s' to %s: %d created, %d updated, %d deleted",
		name, shortHash(result.NewHash), result.Created, result.Updated, result.Deleted)
	if result.Complete() {
		presenter.Success(summary)
	} else {
		presenter.Warning(summary + fmt.Sprintf(", %d conflict(s)", len(result.Conflicts)))
	}
}
