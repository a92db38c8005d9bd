// Package main implements the annotab binary for inspecting, converting and
// distributing annotation databases.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/annotab/annotab/internal/app"
	"github.com/annotab/annotab/internal/config"
	"github.com/annotab/annotab/internal/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, "annotab - tabular annotation databases\n\n")
	fmt.Fprintf(os.Stderr, "Usage: annotab [options] <command> [arguments]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  inspect [-data] <dir>              Summarize the database in dir\n")
	fmt.Fprintf(os.Stderr, "  convert [-format f] <src> [<dst>]  Rewrite table bodies as csv, sqlite or parquet\n")
	fmt.Fprintf(os.Stderr, "  publish <dir> <prefix>             Upload the database to storage\n")
	fmt.Fprintf(os.Stderr, "  fetch <prefix> <dir>               Download a database from storage\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  ANNOTAB_DATA_DIR        Base directory for data files\n")
	fmt.Fprintf(os.Stderr, "  ANNOTAB_FORMAT          Body format (csv, sqlite, parquet)\n")
	fmt.Fprintf(os.Stderr, "  ANNOTAB_STORAGE_TYPE    Storage type (local, s3)\n")
	fmt.Fprintf(os.Stderr, "  ANNOTAB_S3_*            S3 bucket, region and endpoint\n")
	fmt.Fprintf(os.Stderr, "  PRETTY=1, DEBUG=1       Console logging, debug level\n")
}

func main() {
	var (
		configFile  string
		dataDir     string
		storageType string
		storagePath string
		concurrency int
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for data files")
	flag.StringVar(&storageType, "storage", "", "Storage type: local, s3")
	flag.StringVar(&storagePath, "storage-path", "", "Root directory of local storage")
	flag.IntVar(&concurrency, "concurrency", 0, "Number of parallel transfers")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("annotab version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configFile, dataDir, storageType, storagePath, concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	ctx = log.WithContext(ctx)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	if err := run(ctx, a, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error().Err(err).Str("command", flag.Arg(0)).Msg("command failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, command string, args []string) error {
	switch command {
	case "inspect":
		fs := flag.NewFlagSet("inspect", flag.ExitOnError)
		data := fs.Bool("data", false, "Read table bodies to count rows")
		fs.Parse(args)
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: annotab inspect [-data] <dir>")
		}
		s, err := a.Inspect(ctx, fs.Arg(0), *data)
		if err != nil {
			return err
		}
		s.Print(os.Stdout)
		return nil

	case "convert":
		fs := flag.NewFlagSet("convert", flag.ExitOnError)
		format := fs.String("format", "", "Body format: csv, sqlite, parquet")
		fs.Parse(args)
		if fs.NArg() < 1 || fs.NArg() > 2 {
			return fmt.Errorf("usage: annotab convert [-format f] <src> [<dst>]")
		}
		src, dst := fs.Arg(0), fs.Arg(0)
		if fs.NArg() == 2 {
			dst = fs.Arg(1)
		}
		_, err := a.Convert(ctx, src, dst, *format)
		return err

	case "publish":
		if len(args) != 2 {
			return fmt.Errorf("usage: annotab publish <dir> <prefix>")
		}
		return a.Publish(ctx, args[0], args[1])

	case "fetch":
		if len(args) != 2 {
			return fmt.Errorf("usage: annotab fetch <prefix> <dir>")
		}
		return a.Fetch(ctx, args[0], args[1])

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadConfig loads configuration from file, .env, environment, and command
// line flags.
func loadConfig(configFile, dataDir, storageType, storagePath string, concurrency int) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}

	return cfg, nil
}
