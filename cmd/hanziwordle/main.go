package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanziwordle/hanziwordle/pkg/bot"
	"github.com/hanziwordle/hanziwordle/pkg/config"
	"github.com/hanziwordle/hanziwordle/pkg/db"
	"github.com/hanziwordle/hanziwordle/pkg/hanzi"
	"github.com/hanziwordle/hanziwordle/pkg/ingest"
	"github.com/hanziwordle/hanziwordle/pkg/logging"
	"github.com/hanziwordle/hanziwordle/pkg/metrics"
)

type options struct {
	configPath string
	dbPath     string
	workers    int
	batchSize  int
}

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "hanziwordle",
		Short:         "Chinese word search bot and word-list importer",
		Version:       hanzi.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (default ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to SQLite database (overrides database.path)")

	root.AddCommand(newBotCmd(opts), newImportCmd(opts))
	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	if opts.workers > 0 {
		cfg.Import.Workers = opts.workers
	}
	if opts.batchSize > 0 {
		cfg.Import.BatchSize = opts.batchSize
	}
	return cfg, cfg.Validate()
}

func newBotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Answer /search and /fuzzy commands on Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runBot(cmd.Context(), cfg, logger)
		},
	}
}

func runBot(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	count, err := db.CountWords(conn)
	if err != nil {
		return err
	}
	logger.Info("database ready", zap.String("path", cfg.Database.Path), zap.Int("words", count))

	rec := metrics.NewRecorder()
	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, rec, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	svc := bot.NewService(bot.SQLStore{DB: conn}, cfg.Search, logger, rec)
	b, err := bot.New(cfg.Telegram, svc, logger, false)
	if err != nil {
		return err
	}
	b.Run(ctx)
	logger.Info("bot stopped")
	return nil
}

func serveMetrics(addr string, rec *metrics.Recorder, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func newImportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <directory>",
		Short: "Import JSON word lists from a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			conn, err := db.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized at %s\n", cfg.Database.Path)

			im := ingest.NewImporter(conn, logger)
			im.Workers = cfg.Import.Workers
			im.BatchSize = cfg.Import.BatchSize
			im.FlushInterval = cfg.Import.FlushInterval
			im.ProgressEvery = cfg.Import.ProgressEvery
			im.OnProgress = func(stored int64) {
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d words...\n", stored)
			}

			start := time.Now()
			stats, err := im.ImportDir(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Import complete in %v.\n", time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(out, "  files:         %d (%d failed)\n", stats.Files, stats.FailedFiles)
			fmt.Fprintf(out, "  decoded:       %d\n", stats.Entries)
			fmt.Fprintf(out, "  stored:        %d\n", stats.Stored)
			fmt.Fprintf(out, "  duplicates:    %d\n", stats.Duplicates)
			fmt.Fprintf(out, "  skipped:       %d\n", stats.Skipped)
			fmt.Fprintf(out, "  decode errors: %d\n", stats.DecodeErrors)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of files imported in parallel (overrides import.workers)")
	cmd.Flags().IntVar(&opts.batchSize, "batch", 0, "Words per transaction (overrides import.batch_size)")
	return cmd
}
