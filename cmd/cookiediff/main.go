package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/cookiediff/config"
)

var (
	// cfg is loaded from the environment, then overlaid with the crawl
	// manifest and finally with command line flags.
	cfg = config.Load()

	crawlDir string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "cookiediff",
	Short:         "Measure how removing cookies changes what a website shows",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		initLogger(cfg.Log)

		if crawlDir == "" {
			return nil
		}
		m, err := config.LoadManifest(crawlDir)
		if err != nil {
			return err
		}
		m.Apply(cfg)
		slog.Debug("crawl manifest loaded", "name", m.Name, "dataPath", m.DataPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&crawlDir, "crawl-dir", "",
		"Crawl directory written by `init`; its config.yaml overrides the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd, crawlCmd, analyzeCmd, summarizeCmd, splitCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cookiediff: %v\n", err)
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// shardIndex resolves the --shard flag, falling back to the environment.
func shardIndex(flag int) int {
	if flag >= 0 {
		return flag
	}
	return config.ShardIndex()
}
