package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"githubinsight/config"
	"githubinsight/logger"
	"githubinsight/service"
)

var (
	// Version information (set by build flags)
	Version = "dev"

	envFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("Command failed", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "githubinsight",
	Short: "Fetch a GitHub profile snapshot and analyze it",
	Long: `githubinsight collects a developer's public GitHub activity into a snapshot
and derives statistics, repository clusters, an activity forecast and a timeline.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.NewConfig()
		if err := cfg.Load(envFile); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		if err := logger.Initialize(level, cfg.LogEncoding); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("Configuration loaded",
			zap.String("store_backend", cfg.StoreBackend),
			zap.String("api_base_url", cfg.APIBaseURL),
			zap.Bool("authenticated", cfg.GitHubToken != ""))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file with configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("user", "u", "", "GitHub username (overrides GITHUB_USERNAME)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rateLimitCmd)
	rootCmd.AddCommand(insightCmd)
}

// newService applies command line overrides and builds the service.
func newService(cmd *cobra.Command) (*service.Service, error) {
	if user, _ := cmd.Flags().GetString("user"); user != "" {
		cfg.Username = user
	}
	logger.WithContext(zap.String("command", cmd.Name())).Info("Starting command", zap.String("user", cfg.Username))
	return service.NewService(cmd.Context(), cfg)
}
