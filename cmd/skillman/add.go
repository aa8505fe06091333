package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jingkaihe/skillman/pkg/gitremote"
	"github.com/jingkaihe/skillman/pkg/history"
	"github.com/jingkaihe/skillman/pkg/logger"
	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/jingkaihe/skillman/pkg/skills"
	"github.com/jingkaihe/skillman/pkg/syncer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// AddConfig holds configuration for the add command
type AddConfig struct {
	Name        string
	Description string
	OutputDir   string
}

// NewAddConfig creates a new AddConfig with default values
func NewAddConfig() *AddConfig {
	return &AddConfig{}
}

var addCmd = &cobra.Command{
	Use:   "add [github-url]",
	Short: "Install a skill from a GitHub repository",
	Long: `Add downloads a snapshot of a GitHub repository (or a subdirectory of
one) into a new skill directory under the skills root and writes a SKILL.md
header recording where it came from.

Example:
  skillman add https://github.com/owner/repo
  skillman add https://github.com/owner/repo/tree/main/skills/my-skill
  skillman add https://github.com/owner/repo --name my-skill`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getAddConfigFromFlags(cmd)
		runAddCmd(ctx, args[0], config)
	},
}

func init() {
	addDefaults := NewAddConfig()
	addCmd.Flags().StringVar(&addDefaults.Name, "name", addDefaults.Name, "Skill directory name (defaults to the repository or subdirectory name)")
	addCmd.Flags().StringVar(&addDefaults.Description, "description", addDefaults.Description, "Skill description for the metadata header")
	addCmd.Flags().StringVar(&addDefaults.OutputDir, "output-dir", addDefaults.OutputDir, "Parent directory to install into (defaults to the skills root)")
}

// getAddConfigFromFlags extracts add configuration from command flags
func getAddConfigFromFlags(cmd *cobra.Command) *AddConfig {
	config := NewAddConfig()

	if name, err := cmd.Flags().GetString("name"); err == nil {
		config.Name = name
	}
	if description, err := cmd.Flags().GetString("description"); err == nil {
		config.Description = description
	}
	if outputDir, err := cmd.Flags().GetString("output-dir"); err == nil {
		config.OutputDir = outputDir
	}

	return config
}

func runAddCmd(ctx context.Context, locator string, config *AddConfig) {
	inventory, err := newInventory()
	if err != nil {
		presenter.Error(err, "Failed to open skills inventory")
		os.Exit(1)
	}

	ref, err := gitremote.ParseLocator(locator)
	if err != nil {
		presenter.Error(err, "Invalid repository URL")
		os.Exit(1)
	}

	name := config.Name
	if name == "" {
		name = defaultSkillName(ref)
	}

	parent := config.OutputDir
	if parent == "" {
		parent = inventory.Root()
	}
	target := filepath.Join(parent, name)
	if _, err := os.Stat(target); err == nil {
		presenter.Error(errors.Errorf("directory %s already exists", target), "Skill already installed")
		os.Exit(1)
	}

	remote := gitremote.NewGitCLI()

	resolved, err := remote.ResolveRef(ctx, ref)
	if err != nil {
		presenter.Error(err, "Failed to resolve repository reference")
		os.Exit(1)
	}

	snapshot, err := remote.FetchSnapshot(ctx, resolved)
	if err != nil {
		presenter.Error(err, "Failed to fetch repository snapshot")
		os.Exit(1)
	}

	// An upstream SKILL.md seeds the description and body, but the header we
	// write is our own.
	description := config.Description
	body := ""
	if entry, ok := snapshot.Files[skills.SkillFileName]; ok {
		if meta, upstreamBody, err := skills.ParseDocument(entry.Content); err == nil {
			if description == "" {
				description = meta.Get(skills.FieldDescription)
			}
			body = upstreamBody
		}
		delete(snapshot.Files, skills.SkillFileName)
	}
	if body == "" {
		body = fmt.Sprintf("\n# %s\n\nSynced from %s.\n", name, ref.String())
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		presenter.Error(err, "Failed to create skill directory")
		os.Exit(1)
	}
	if err := syncer.Seed(target, snapshot.Files); err != nil {
		os.RemoveAll(target)
		presenter.Error(err, "Failed to write skill files")
		os.Exit(1)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	meta := skills.NewMetadata()
	meta.Set(skills.FieldName, name)
	if description != "" {
		meta.Set(skills.FieldDescription, description)
	}
	meta.Set(skills.FieldGithubURL, ref.String())
	meta.Set(skills.FieldGithubHash, snapshot.Commit.CommitHash)
	meta.Set(skills.FieldVersion, "0.1.0")
	meta.Set(skills.FieldCreatedAt, createdAt)

	rendered, err := meta.Render(body)
	if err != nil {
		os.RemoveAll(target)
		presenter.Error(err, "Failed to serialize metadata header")
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(target, skills.SkillFileName), rendered, 0o644); err != nil {
		os.RemoveAll(target)
		presenter.Error(err, "Failed to write metadata header")
		os.Exit(1)
	}

	// Record the install as a committed run so the next sync knows which
	// files came from upstream.
	if store, err := openHistory(ctx); err == nil {
		defer store.Close()
		run := history.Run{
			ID:                uuid.New().String(),
			Skill:             name,
			NewHash:           snapshot.Commit.CommitHash,
			Created:           len(snapshot.Files),
			MetadataCommitted: true,
			StartedAt:         time.Now().UTC(),
		}
		if err := store.RecordRun(ctx, run, snapshot.Files.Digests()); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record install run")
		}
	} else {
		logger.G(ctx).WithError(err).Warn("failed to open sync history")
	}

	presenter.Success(fmt.Sprintf("Installed skill '%s' at %s (commit %s)", name, target, shortHash(snapshot.Commit.CommitHash)))
}

// defaultSkillName derives the skill directory name from the locator: the
// subdirectory's base name when one is given, otherwise the repository name.
func defaultSkillName(ref gitremote.RemoteRef) string {
	if ref.Subdirectory != "" {
		return path.Base(ref.Subdirectory)
	}
	return path.Base(ref.RepoURL)
}
