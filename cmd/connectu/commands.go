package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/connectu/connectu/internal/config"
	"github.com/connectu/connectu/internal/storage"
)

var processCmd = &cobra.Command{
	Use:   "process <form-id>",
	Short: "Process a form's responses and generate connections",
	Long: `Run every unprocessed response of the form through summary synthesis and
embedding, then rank all pairs and persist the connections.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(args[0])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage and index counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runProcess(formID string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	deps, err := buildPipeline(ctx, cfg, store)
	if err != nil {
		return err
	}

	report, err := deps.processor.ProcessForm(ctx, formID)
	if err != nil {
		return err
	}
	fmt.Printf("processed %d/%d responses\n", report.Processed, report.Total)
	for _, f := range report.Failures {
		fmt.Printf("  failed: %s (%s) at %s: %v\n", f.RespondentName, f.ResponseID, f.Stage, f.Err)
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d responses failed; re-run to retry", len(report.Failures))
	}

	conns, err := deps.processor.GenerateConnections(ctx, formID)
	if err != nil {
		return err
	}
	fmt.Printf("generated %d connections\n", len(conns))
	for i, c := range conns {
		if i >= 10 {
			fmt.Printf("  ... and %d more\n", len(conns)-10)
			break
		}
		fmt.Printf("  %.4f  %s <> %s\n", c.Score, c.RespondentAName, c.RespondentBName)
	}
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	deps, err := buildPipeline(ctx, cfg, store)
	if err != nil {
		return err
	}

	points, err := deps.index.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting index points: %w", err)
	}
	jobs, err := store.CountJobs()
	if err != nil {
		return fmt.Errorf("counting jobs: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "index backend:\t%s\n", cfg.Index.Backend)
	fmt.Fprintf(tw, "stored embeddings:\t%d\n", points)
	for _, status := range []string{"pending", "running", "completed", "failed"} {
		fmt.Fprintf(tw, "jobs %s:\t%d\n", status, jobs[status])
	}
	return tw.Flush()
}
