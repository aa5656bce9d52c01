package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/cookiediff/analysis"
	"github.com/use-agent/cookiediff/compare"
	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/shard"
	"github.com/use-agent/cookiediff/store"
	"github.com/use-agent/cookiediff/webhook"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare the captured artifacts of one shard of crawled sites",
	RunE:  runAnalyze,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [analysis-dir]",
	Short: "Aggregate every shard document into per-site feature summaries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSummarize,
}

func init() {
	analyzeCmd.Flags().Int("shard", -1, "Shard index (default: COOKIEDIFF_SHARD or SLURM_ARRAY_TASK_ID)")
	analyzeCmd.Flags().IntVar(&cfg.Analysis.Shards, "shards", cfg.Analysis.Shards, "Number of shards")
	analyzeCmd.Flags().IntVar(&cfg.Analysis.Workers, "workers", cfg.Analysis.Workers, "Sites compared concurrently")
	analyzeCmd.Flags().IntVar(&cfg.Analysis.ChunkSize, "chunk-size", cfg.Analysis.ChunkSize, "Screenshot tile size in pixels")
	analyzeCmd.Flags().StringVar(&cfg.Analysis.OutputPath, "out", cfg.Analysis.OutputPath, "Analysis output directory")

	summarizeCmd.Flags().String("format", "table", "Output format: table or json")
	summarizeCmd.Flags().Bool("from-db", false, "Read difference records from the database instead of shard documents")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	idx, _ := cmd.Flags().GetInt("shard")
	index := shardIndex(idx)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.Results(ctx)
	if err != nil {
		return err
	}
	sites, err := shard.Select(analysis.Successful(results), cfg.Analysis.Shards, index)
	if err != nil {
		return err
	}
	slog.Info("analysis starting",
		"shard", index,
		"shards", cfg.Analysis.Shards,
		"crawled", len(results),
		"sites", len(sites),
	)

	m := metrics.New(nil)
	notifier := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout, slog.Default())
	a := &analysis.Analyzer{
		Comparator: &compare.Comparator{
			ChunkSize:         cfg.Analysis.ChunkSize,
			ClickstreamLength: cfg.Crawl.ClickstreamLength,
			Logger:            slog.Default(),
			Metrics:           m,
		},
		Workers:    cfg.Analysis.Workers,
		OutputPath: cfg.Analysis.OutputPath,
		Shard:      index,
		Sink:       st,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     slog.Default(),
	}
	_, runErr := a.Run(ctx, sites)

	// Retries back off for up to 36s; give them a little longer.
	wctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if err := notifier.Wait(wctx); err != nil {
		slog.Warn("webhook deliveries still pending at exit", "error", err)
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("analysis finished", "output", analysis.OutputFile(cfg.Analysis.OutputPath, index))
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	dir := cfg.Analysis.OutputPath
	if len(args) == 1 {
		dir = args[0]
	}
	format, _ := cmd.Flags().GetString("format")
	fromDB, _ := cmd.Flags().GetBool("from-db")

	var (
		d   models.Differences
		err error
	)
	if fromDB {
		d, err = loadStored(cmd.Context())
	} else {
		d, err = analysis.Load(dir)
	}
	if err != nil {
		return err
	}
	summaries := compare.SummarizeAll(d)

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case "table":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DOMAIN\tFEATURE\tSTEPS\tCONTROL\tEXPERIMENTAL\tDID")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.4f\t%.4f\t%.4f\n",
				s.Domain, s.Feature, s.Steps, s.ControlDiff, s.ExperimentalDiff, s.DiD)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// loadStored reads every site's difference records from the database.
func loadStored(ctx context.Context) (models.Differences, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	domains, err := st.Domains(ctx)
	if err != nil {
		return nil, err
	}
	d := make(models.Differences, len(domains))
	for _, domain := range domains {
		if d[domain], err = st.Differences(ctx, domain); err != nil {
			return nil, err
		}
	}
	return d, nil
}
