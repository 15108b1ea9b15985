package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-quotes/config"
	"github.com/aluiziolira/go-scrape-quotes/models"
	"github.com/aluiziolira/go-scrape-quotes/pipeline"
	"github.com/aluiziolira/go-scrape-quotes/scraper"
	"github.com/aluiziolira/go-scrape-quotes/store"
)

func main() {
	defaultCfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Optional YAML configuration file")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Base URL to crawl")
	maxPages := flag.Int("pages", defaultCfg.MaxPages, "Maximum listing pages to walk")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "Per-request timeout")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	archive := flag.String("archive", "", "Optional SQLite file receiving the run")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	probe := flag.Bool("probe", false, "Only count listing pages and exit")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [quotes.csv authors.csv]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = *baseURL
		case "pages":
			cfg.MaxPages = *maxPages
		case "timeout":
			cfg.Timeout = *timeout
		case "respect-robots":
			cfg.RespectRobotsTxt = *respectRobots
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "archive":
			cfg.ArchiveFile = *archive
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	switch args := flag.Args(); len(args) {
	case 0:
	case 2:
		cfg.QuotesFile, cfg.AuthorsFile = args[0], args[1]
	default:
		flag.Usage()
		os.Exit(2)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *probe {
		pages, truncated, err := s.CountPages(ctx)
		if err != nil {
			slog.Error("probing pages failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("pages: %d (truncated: %t)\n", pages, truncated)
		return
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
	)

	result, err := s.Run(ctx)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := pipeline.WriteQuotes(cfg.OutputFormat, cfg.QuotesFile, result.Quotes); err != nil {
		slog.Error("writing quotes failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := pipeline.WriteAuthors(cfg.OutputFormat, cfg.AuthorsFile, result.Authors); err != nil {
		slog.Error("writing authors failed", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.ArchiveFile != "" {
		if err := saveArchive(ctx, cfg.ArchiveFile, result); err != nil {
			slog.Error("archiving run failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg)
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func saveArchive(ctx context.Context, path string, result *models.ScraperResult) error {
	archive, err := store.Open(path)
	if err != nil {
		return err
	}
	if err := archive.SaveRun(ctx, result.Quotes, result.Authors); err != nil {
		archive.Close()
		return err
	}
	return archive.Close()
}

func printSummary(result *models.ScraperResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	if result.Truncated {
		fmt.Printf("  Truncated:     page limit %d reached\n", cfg.MaxPages)
	}
	fmt.Printf("  Quotes:        %d\n", len(result.Quotes))
	fmt.Printf("  Authors:       %d\n", len(result.Authors))
	fmt.Printf("  Cache:         %d hits / %d misses\n", result.CacheHits, result.CacheMisses)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Quotes file:   %s\n", cfg.QuotesFile)
	fmt.Printf("  Authors file:  %s\n", cfg.AuthorsFile)
	if cfg.ArchiveFile != "" {
		fmt.Printf("  Archive:       %s\n", cfg.ArchiveFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
