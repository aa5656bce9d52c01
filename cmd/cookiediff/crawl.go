package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/use-agent/cookiediff/config"
	"github.com/use-agent/cookiediff/cookiedb"
	"github.com/use-agent/cookiediff/crawler"
	"github.com/use-agent/cookiediff/engine"
	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/scraper"
	"github.com/use-agent/cookiediff/shard"
	"github.com/use-agent/cookiediff/store"
)

var initCmd = &cobra.Command{
	Use:   "init <crawl-name>",
	Short: "Create a crawl directory and queue its site list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sites, _ := cmd.Flags().GetString("sites"); sites != "" {
			cfg.Crawl.SiteListPath = sites
		}
		if cfg.Crawl.SiteListPath == "" {
			return errors.New("a site list is required (--sites or COOKIEDIFF_SITE_LIST)")
		}

		m := config.NewManifest(args[0], cfg.Crawl, cfg.Store)
		domains, err := config.ReadSiteList(m.SiteListPath)
		if err != nil {
			return err
		}
		if err := m.Save(); err != nil {
			return err
		}

		st, err := store.Open(m.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Enqueue(cmd.Context(), domains)
		if err != nil {
			return err
		}
		slog.Info("crawl initialised",
			"name", m.Name,
			"dataPath", m.DataPath,
			"database", m.DatabasePath,
			"queued", n,
			"duplicates", len(domains)-n,
		)
		fmt.Fprintln(cmd.OutOrStdout(), m.DataPath)
		return nil
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl queued sites with baseline, control and experimental browsers",
	RunE:  runCrawl,
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Print the sites of one shard of the site list",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, _ := cmd.Flags().GetInt("shard")
		domains, err := config.ReadSiteList(cfg.Crawl.SiteListPath)
		if err != nil {
			return err
		}
		part, err := shard.Select(domains, cfg.Analysis.Shards, shardIndex(idx))
		if err != nil {
			return err
		}
		for _, d := range part {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("sites", "", "Newline-separated list of domains")

	crawlCmd.Flags().Int("shard", -1, "Shard tag recorded with every result (default: COOKIEDIFF_SHARD or SLURM_ARRAY_TASK_ID)")
	crawlCmd.Flags().String("treatment", "", "Cookie treatment of the experimental session")
	crawlCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while crawling")

	splitCmd.Flags().Int("shard", -1, "Shard index (default: COOKIEDIFF_SHARD or SLURM_ARRAY_TASK_ID)")
	splitCmd.Flags().IntVar(&cfg.Analysis.Shards, "shards", cfg.Analysis.Shards, "Number of shards")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	idx, _ := cmd.Flags().GetInt("shard")
	if t, _ := cmd.Flags().GetString("treatment"); t != "" {
		cfg.Crawl.Treatment = t
	}
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Treatment and cookie classification ──────────────────────
	treatment, err := scraper.ParseTreatment(cfg.Crawl.Treatment)
	if err != nil {
		return err
	}
	var cookies *cookiedb.Database
	if cfg.Crawl.CookieDatabase != "" {
		cookies, err = cookiedb.LoadFile(cfg.Crawl.CookieDatabase)
		if err != nil {
			return err
		}
		slog.Info("cookie database loaded", "path", cfg.Crawl.CookieDatabase, "cookies", cookies.Len())
	} else if treatment.Kind == scraper.TreatClass {
		return errors.New("a class treatment needs a cookie database (COOKIEDIFF_COOKIE_DATABASE)")
	}

	// ── 2. Queue ────────────────────────────────────────────────────
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	// ── 3. Landing page resolution ──────────────────────────────────
	launcher := scraper.NewLauncher(cfg.Browser, cookies, slog.Default())
	prober, err := launcher.NewProber()
	if err != nil {
		return err
	}
	defer prober.Close()

	engines := []engine.Engine{
		engine.NewHTTPEngine(cfg.Resolver.HTTPTimeout),
		engine.NewRodEngine(prober.Fetch),
	}
	memory := engine.NewDomainMemory(cfg.Resolver.MemoryTTL)
	defer memory.Stop()

	dispatcher := engine.NewDispatcher(engines, cfg.Resolver.EscalationDelays, memory)
	dispatcher.CandidateTimeout = cfg.Resolver.CandidateTimeout
	dispatcher.Validate = crawler.ValidateLanding
	dispatcher.Logger = slog.Default()

	// ── 4. Metrics ──────────────────────────────────────────────────
	m := metrics.New(nil)
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			slog.Info("metrics listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	// ── 5. Crawl until the queue is empty ───────────────────────────
	if err := os.MkdirAll(cfg.Crawl.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data path: %w", err)
	}
	w := &crawler.Worker{
		Crawler:     crawler.New(cfg.Crawl, crawler.Sessions(launcher), dispatcher, treatment, slog.Default()),
		Queue:       st,
		Shard:       shardIndex(idx),
		SiteTimeout: cfg.Crawl.SiteTimeout,
		KillGrace:   cfg.Crawl.KillGrace,
		Metrics:     m,
		Logger:      slog.Default(),
	}
	slog.Info("crawl starting",
		"shard", w.Shard,
		"treatment", treatment.String(),
		"dataPath", cfg.Crawl.DataPath,
		"totalActions", cfg.Crawl.TotalActions,
		"clickstreamLength", cfg.Crawl.ClickstreamLength,
	)

	n, err := w.Run(ctx)
	slog.Info("crawl finished", "sites", n)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
