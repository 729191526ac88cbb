package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-ranker/internal/pipeline"
	"github.com/jonathan/job-ranker/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	Long:  `Start an HTTP server that accepts run triggers on POST /runs and reports run status on GET /runs/{id}.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequirePipeline(); err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, closeReader, err := openStore(ctx, cfg)
	defer closeReader()
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(pipelineFactory(cfg, log, nil), retryPolicy(cfg.Task), log)
	srv := server.New(server.Config{
		Port:              cfg.Server.Port,
		TriggersPerSecond: cfg.Server.TriggersPerSecond,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, runner, reader, log)

	return srv.Start(ctx)
}
