package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/feedlab/persnews/pkg/affinity"
	"github.com/feedlab/persnews/pkg/classifier"
	"github.com/feedlab/persnews/pkg/config"
	"github.com/feedlab/persnews/pkg/content"
	"github.com/feedlab/persnews/pkg/credibility"
	"github.com/feedlab/persnews/pkg/feed"
	"github.com/feedlab/persnews/pkg/repository"
	"github.com/feedlab/persnews/pkg/service"
	"github.com/feedlab/persnews/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address override"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	setupLog(opts.Debug, cfg.Classifier.APIKey, cfg.Fetch.APIKey)

	log.Printf("[INFO] starting persnews version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}

	cancel()
	log.Print("[INFO] shutdown complete")
}

// run wires all components together and serves until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	store, err := repository.New(ctx, repository.Config{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("open rating store: %w", err)
	}
	defer store.Close()

	model := affinity.New(store, affinity.Config{
		Factors:        cfg.Model.Factors,
		Epochs:         cfg.Model.Epochs,
		LearningRate:   cfg.Model.LearningRate,
		Regularization: cfg.Model.Regularization,
		TestFraction:   cfg.Model.TestFraction,
	})

	source, err := feed.NewSource(cfg.Fetch)
	if err != nil {
		return fmt.Errorf("create article source: %w", err)
	}

	// the classifier is loaded once and shared read-only across all requests
	scorer := classifier.New(cfg.Classifier)
	aggregator := credibility.NewAggregator(scorer, credibility.Config{
		Timeout:    cfg.Classifier.Timeout,
		MaxWorkers: cfg.Classifier.MaxWorkers,
	})

	extractor := content.NewHTTPExtractor(cfg.Extraction)

	orchestrator := service.New(store, model, source, extractor, aggregator, service.Config{
		DefaultKeywords: cfg.Model.DefaultKeywords,
		MaxConcurrent:   cfg.Extraction.MaxConcurrent,
		RefreshInterval: cfg.Model.RefreshInterval,
	})
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	srv := server.New(cfg, orchestrator, revision, debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// loadConfig reads the config file, falling back to defaults if it is absent,
// and applies CLI overrides
func loadConfig(opts Opts) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	switch {
	case err == nil: // loaded
	case errors.Is(err, os.ErrNotExist) && opts.Config == "config.yml":
		cfg = config.Default() // no config file, defaults are enough for rss mode
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	return cfg, nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	for _, sec := range secs {
		if sec != "" {
			logOpts = append(logOpts, lgr.Secret(sec))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
