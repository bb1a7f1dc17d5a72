package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/pipeprep/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pipeprep",
	Short: "pipeprep prepares test runs of a RAG ingestion pipeline",
	Long: `pipeprep lets you pick a datasource of a RAG pipeline, select the documents
to ingest, fill in the processing inputs and dispatch a test run, then preview
the resulting chunks.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().String("env-file", "", "Dotenv file (default ./.env when present)")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the pipeline graph")
	rootCmd.PersistentFlags().String("pipeline", "", "Pipeline ID")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("session-backend", "", "Session store: memory, file, redis, postgres")
}

// loadConfig loads the configuration and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.GraphDir, _ = flags.GetString("dir")
	}
	if flags.Changed("pipeline") {
		cfg.PipelineID, _ = flags.GetString("pipeline")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("session-backend") {
		cfg.Sessions.Backend, _ = flags.GetString("session-backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
