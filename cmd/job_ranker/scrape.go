package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-ranker/internal/config"
	"github.com/jonathan/job-ranker/internal/observability"
	"github.com/jonathan/job-ranker/internal/profile"
	"github.com/jonathan/job-ranker/internal/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <profile-url>",
	Short: "Collect a public freelancer profile through the scraping provider",
	Long: `Triggers a collection for the profile URL, waits for the snapshot and prints the
scraped profile as JSON. With --show-context the profile context the pipeline
would build from it is printed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

var (
	scrapeOutput      string
	scrapeShowContext bool
)

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Write the profile JSON to this file instead of stdout")
	scrapeCmd.Flags().BoolVar(&scrapeShowContext, "show-context", false, "Print the profile context built from the scraped profile")
	rootCmd.AddCommand(scrapeCmd)
}

func scraperConfig(cfg config.ScraperConfig) scraper.Config {
	return scraper.Config{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		DatasetID:    cfg.DatasetID,
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.MaxWait,
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireScraper(); err != nil {
		return err
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := scraper.NewClient(scraperConfig(cfg.Scraper), log)
	if err != nil {
		return fmt.Errorf("failed to create scraper client: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := client.Scrape(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to scrape profile: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if scrapeOutput != "" {
		if err := os.WriteFile(scrapeOutput, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile written to %s\n", scrapeOutput)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	if scrapeShowContext {
		observability.NewPrinter(cmd.OutOrStdout()).PrintProfileContext(profile.BuildContext(p.Bundle()))
	}
	return nil
}
