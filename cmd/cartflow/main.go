// Package main implements the cartflow binary. One binary covers all
// three modes: a full local run, a coordinator, or a worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartflow/cartflow/internal/app"
	"github.com/cartflow/cartflow/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		mode        string
		inputPath   string
		outputDir   string
		shards      int
		sessionGap  time.Duration
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&mode, "mode", "", "Run mode: local, coordinate, work")
	flag.StringVar(&inputPath, "input", "", "Path to the gzipped cart events export")
	flag.StringVar(&outputDir, "output", "", "Output directory for partitions and session files")
	flag.IntVar(&shards, "shards", 0, "Number of shards to split the input into")
	flag.DurationVar(&sessionGap, "session-gap", 0, "Maximum idle gap before a session closes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Cartflow - Cart Event Sessionization Pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cartflow [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cartflow --input events.json.gz --output ./out\n")
		fmt.Fprintf(os.Stderr, "  cartflow --input events.json.gz --output ./out --shards 8\n")
		fmt.Fprintf(os.Stderr, "  cartflow --mode coordinate --config /etc/cartflow/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  cartflow --mode work --config /etc/cartflow/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  CARTFLOW_MODE          Run mode (local, coordinate, work)\n")
		fmt.Fprintf(os.Stderr, "  CARTFLOW_INPUT_PATH    Input file path\n")
		fmt.Fprintf(os.Stderr, "  CARTFLOW_OUTPUT_DIR    Output directory\n")
		fmt.Fprintf(os.Stderr, "  CARTFLOW_REDIS_ADDR    Redis address for the shard queue\n")
		fmt.Fprintf(os.Stderr, "  CARTFLOW_STORAGE_TYPE  Storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("cartflow version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, mode, inputPath, outputDir, shards, sessionGap)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printSummary(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

// loadConfig loads configuration from file, environment, and command line
// flags, in increasing priority.
func loadConfig(configFile, mode, inputPath, outputDir string, shards int, sessionGap time.Duration) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if shards > 0 {
		cfg.Shard.Count = shards
	}
	if sessionGap > 0 {
		cfg.Session.MaxGap = sessionGap
	}

	return cfg, nil
}

// printSummary logs the effective configuration.
func printSummary(cfg *config.Config) {
	log.Printf("cartflow %s starting", version)
	log.Printf("  mode:    %s", cfg.Mode)
	if cfg.Mode != config.ModeWork {
		log.Printf("  input:   %s", cfg.Input.Path)
	}
	log.Printf("  output:  %s", cfg.Output.Dir)
	log.Printf("  shards:  %d", cfg.Shard.Count)
	log.Printf("  gap:     %v", cfg.Session.MaxGap)
	log.Printf("  dedup:   %s", cfg.Dedup.Mode)
	log.Printf("  queue:   %s", cfg.Queue.Type)
	log.Printf("  storage: %s (upload=%v)", cfg.Storage.Type, cfg.Output.Upload)
}
