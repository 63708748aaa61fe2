package main

import (
	"github.com/spf13/cobra"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "sceneflow",
	Short: "Screenplay scene extraction and enrichment worker",
	Long: `Sceneflow consumes uploaded screenplay documents from a message queue,
splits them into scenes, enriches every scene through a text-generation
service and publishes the exported result.`,
	Version:      gitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./sceneflow.yaml or /etc/sceneflow/sceneflow.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&envFile, "env-file", "", "dotenv file loaded before the environment (default: ./.env if present)",
	)

	rootCmd.AddCommand(consumeCmd, segmentCmd, enqueueCmd, versionCmd)
}

// loadConfig loads configuration and builds the process logger. Invalid
// configuration is fatal.
func loadConfig() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		logger.New(logger.Options{}).WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(logger.Options{Environment: cfg.Environment, Level: cfg.Log.Level})
	return cfg, log.With("service", "sceneflow")
}
