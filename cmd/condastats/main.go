package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/condastats/cache"
	"github.com/aluiziolira/condastats/config"
	"github.com/aluiziolira/condastats/models"
	"github.com/aluiziolira/condastats/pipeline"
	"github.com/aluiziolira/condastats/scraper"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
		return 1
	}

	logger := newLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	failureLogger, closeLog, err := newFailureLogger(cfg.LogFile, logger)
	if err != nil {
		slog.Error("opening log file", slog.Any("error", err))
		return 1
	}
	defer closeLog()
	sink := pipeline.NewLogSink(failureLogger)

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("pages", cfg.Pages()),
		slog.Int("workers", cfg.Workers),
	)

	s, err := scraper.NewScraper(cfg,
		scraper.WithFailureSink(sink),
		scraper.WithNameStore(cache.NewNameFile(cfg.CacheFile)),
	)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	writer, err := createWriter(cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight requests to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, runErr := s.Run(ctx, writer)
	closeErr := writer.Close()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if result != nil {
		printSummary(os.Stderr, result, sink.Count())
	}

	switch {
	case errors.Is(runErr, scraper.ErrNoPackageNames):
		fmt.Fprintln(os.Stderr, "Could not parse package name list")
		return 1
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "Could not get package counts due to %v\n", runErr)
		return 1
	case closeErr != nil:
		fmt.Fprintf(os.Stderr, "Could not get package counts due to %v\n", closeErr)
		return 1
	}
	return 0
}

func parseConfig(args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	fs := flag.NewFlagSet("condastats", flag.ContinueOnError)
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Maximum listing pages to fetch (0 = all)")
	fs.BoolVar(&cfg.SortByDownloads, "sort_by_downloads", cfg.SortByDownloads, "Sort packages by ascending download count")
	fs.IntVar(&cfg.Workers, "max_workers", cfg.Workers, "Number of concurrent requests")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Channel base URL")
	fs.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Number of listing pages in the channel")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.StringVar(&cfg.CacheFile, "cache-file", cfg.CacheFile, "Package name cache file")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "File receiving per-item failures (empty = stderr)")
	fs.StringVar(&cfg.ExportFile, "export", cfg.ExportFile, "Also write the results to this file")
	fs.StringVar(&cfg.ExportFormat, "export-format", cfg.ExportFormat, "Export format: csv, markdown, or json")
	fs.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	fs.String("config", "", "Config file (one \"flag value\" per line)")

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("CONDASTATS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		return nil, err
	}
	cfg.ExportFormat = strings.ToLower(cfg.ExportFormat)
	return cfg, nil
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	stdout := pipeline.NewJSONWriter(os.Stdout)
	if cfg.ExportFile == "" {
		return stdout, nil
	}

	var export pipeline.OutputWriter
	var err error
	switch cfg.ExportFormat {
	case config.FormatCSV:
		export, err = pipeline.NewCSVFileWriter(cfg.ExportFile)
	case config.FormatMarkdown:
		export, err = pipeline.NewMarkdownFileWriter(cfg.ExportFile)
	case config.FormatJSON:
		export, err = pipeline.NewJSONFileWriter(cfg.ExportFile)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.ExportFormat)
	}
	if err != nil {
		return nil, err
	}
	return pipeline.NewMultiWriter(stdout, export), nil
}

func newFailureLogger(path string, fallback *slog.Logger) (*slog.Logger, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelError}))
	return logger, func() {
		if err := f.Close(); err != nil {
			slog.Error("close log file", slog.Any("error", err))
		}
	}, nil
}

func printSummary(w io.Writer, result *models.RunResult, failures int) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Scrape %s\n", result.State)

	packages := 0
	if result.Results != nil {
		packages = result.Results.Len()
	}

	if result.FromCache {
		fmt.Fprintf(w, "  Names:         %d (from cache)\n", result.NameCount)
	} else {
		fmt.Fprintf(w, "  Pages:         %d (%d failed)\n", result.PageCount, len(result.FailedPages))
		fmt.Fprintf(w, "  Names:         %d\n", result.NameCount)
	}
	fmt.Fprintf(w, "  Packages:      %d (%d failed)\n", packages, len(result.FailedNames))
	if result.DuplicateRecords > 0 {
		fmt.Fprintf(w, "  Duplicates:    %d\n", result.DuplicateRecords)
	}
	if len(result.AbsentFields) > 0 {
		fmt.Fprintf(w, "  Absent fields: %s\n", formatCounts(result.AbsentFields))
	}
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Failures:      %d\n", failures)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %s\n", formatCounts(result.ErrorsByType))
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Fprintln(w, separator)
}

// formatCounts renders counts as space separated key=value pairs sorted by key.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}

func newLogger(w *os.File, verbose bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
