// Package main provides the entry point for the job ranker CLI and trigger server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "job_ranker",
	Short: "Job enrichment and ranking pipeline",
	Long: `job_ranker embeds a freelancer profile and a team's job pool, shortlists the
closest jobs by vector similarity, enriches them and scores each one with an LLM.

Configuration is read from an optional YAML file (--config) and JOB_RANKER_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
