// Package main is the collectstats command. It parses a Cooja simulation or
// Firefly testbed log and reports per-node packet delivery and radio duty
// cycle.
//
// Usage:
//
//	collectstats [flags] <logfile>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/config"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/container"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/pipeline"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// options are the command line flags
type options struct {
	configPath    string
	testbed       bool
	logLevel      string
	timezone      string
	parquet       bool
	summary       bool
	archive       string
	archiveDriver string
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{}
	fs := flag.NewFlagSet("collectstats", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	fs.BoolVar(&opts.testbed, "testbed", false, "Parse a Firefly testbed log instead of a Cooja simulation log")
	fs.BoolVar(&opts.testbed, "t", false, "Shorthand for -testbed")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.timezone, "tz", "Local", "Time zone of testbed timestamps")
	fs.BoolVar(&opts.parquet, "parquet", false, "Also write the result tables as Parquet")
	fs.BoolVar(&opts.summary, "summary", false, "Also write a JSON summary of the run")
	fs.StringVar(&opts.archive, "archive", "", "Archive the run into this database")
	fs.StringVar(&opts.archiveDriver, "archive-driver", "duckdb", "Archive driver (duckdb, sqlite3)")

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: collectstats [flags] <logfile>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs, nil
}

// loadConfig reads the optional config file and applies the flags that were
// set explicitly on top of it
func loadConfig(opts *options, fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "testbed", "t":
			if opts.testbed {
				cfg.Mode = types.ModeTestbed.String()
			} else {
				cfg.Mode = types.ModeSimulation.String()
			}
		case "log-level":
			cfg.LogLevel = opts.logLevel
		case "tz":
			cfg.Timezone = opts.timezone
		case "parquet":
			cfg.Output.Parquet = opts.parquet
		case "summary":
			cfg.Output.Summary = opts.summary
		case "archive":
			cfg.Archive.DSN = opts.archive
		case "archive-driver":
			cfg.Archive.Driver = opts.archiveDriver
		}
	})

	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	logPath := fs.Arg(0)

	cfg, err := loadConfig(opts, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// bad input must fail before anything is created next to it
	if err := pipeline.ValidateInput(logPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize")
		return 1
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.WithError(err).Error("Failed to close archive")
		}
	}()

	if _, err := pipeline.New(c, stdout).Run(ctx, logPath); err != nil {
		var inputErr *types.InputError
		if errors.As(err, &inputErr) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		} else {
			logger.WithError(err).Error("Analysis failed")
		}
		return 1
	}
	return 0
}
