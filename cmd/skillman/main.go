package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skillman/pkg/history"
	"github.com/jingkaihe/skillman/pkg/logger"
	"github.com/jingkaihe/skillman/pkg/presenter"
	"github.com/jingkaihe/skillman/pkg/skills"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLMAN")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillman")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillman",
	Short: "Manage skill directories synced from GitHub repositories",
	Long: `Skillman keeps local skill directories in sync with the GitHub
repositories they were installed from. Each skill carries a SKILL.md header
recording its source repository and the commit it was last synced to.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning("invalid log level, falling back to warn")
			_ = logger.SetLogLevel("warn")
		}
		logger.SetLogFormat(viper.GetString("log_format"))

		if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
			presenter.SetQuiet(quiet)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

// newInventory builds the skills inventory honoring the --skills-dir flag
// and SKILLMAN_SKILLS_DIR environment variable
func newInventory() (*skills.Inventory, error) {
	if dir := viper.GetString("skills_dir"); dir != "" {
		return skills.NewInventory(skills.WithRoot(dir))
	}
	return skills.NewInventory()
}

// openHistory opens the sync history database at its configured location
func openHistory(ctx context.Context) (*history.Store, error) {
	dbPath := viper.GetString("history_db")
	if dbPath == "" {
		var err error
		dbPath, err = history.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return history.Open(ctx, dbPath)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Add global flags
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().String("skills-dir", "", "Skills root directory (defaults to ~/.skillman/skills)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("skills_dir", rootCmd.PersistentFlags().Lookup("skills-dir"))

	// Add subcommands
	rootCmd.AddCommand(withTracing(addCmd))
	rootCmd.AddCommand(withTracing(syncCmd))
	rootCmd.AddCommand(withTracing(checkCmd))
	rootCmd.AddCommand(withTracing(listCmd))
	rootCmd.AddCommand(withTracing(deleteCmd))
	rootCmd.AddCommand(withTracing(historyCmd))
	rootCmd.AddCommand(versionCmd)

	shutdown, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	}
	defer func() {
		if shutdown != nil {
			_ = shutdown(context.Background())
		}
	}()

	ctx = logger.WithLogger(ctx, logger.L)

	// Execute
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
