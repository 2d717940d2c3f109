package main

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/segpack/internal/config"
	"github.com/andresuchdata/segpack/internal/report"
	"github.com/andresuchdata/segpack/internal/storage"
	"github.com/andresuchdata/segpack/internal/uploader"
	"github.com/andresuchdata/segpack/pkg/logger"
)

func uploadFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "inputPath",
			Usage:   "Local directory (or file) to upload",
			EnvVars: []string{"SEGPACK_INPUT_PATH"},
		},
		&cli.StringFlag{
			Name:    "outputPath",
			Usage:   "Destination URL, e.g. s3://bucket/prefix",
			EnvVars: []string{"SEGPACK_OUTPUT_PATH"},
		},
		&cli.StringFlag{
			Name:    "tempFilePrefix",
			Usage:   "File name prefix of the segments",
			Value:   cfg.Upload.TempFilePrefix,
			EnvVars: []string{"SEGPACK_TEMP_FILE_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "sizeLimit",
			Usage:   "Files smaller than this are packed into segments (bytes, 64KiB, 1MB...)",
			Value:   cfg.Upload.SizeLimit,
			EnvVars: []string{"SEGPACK_SIZE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "batchSizeLimit",
			Usage:   "Maximum payload bytes per segment",
			Value:   cfg.Upload.BatchSizeLimit,
			EnvVars: []string{"SEGPACK_BATCH_SIZE_LIMIT"},
		},
		&cli.StringSliceFlag{
			Name:    "scheme",
			Usage:   "Accepted output scheme prefixes",
			Value:   cli.NewStringSlice(cfg.Upload.Schemes...),
			EnvVars: []string{"SEGPACK_SCHEMES"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   cfg.Log.Level,
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}

type uploadArgs struct {
	input          string
	location       storage.Location
	tempFilePrefix string
	sizeLimit      int64
	batchSizeLimit int64
}

// parseUploadArgs validates the flags without touching the filesystem or network.
// The path flags are checked here because the root flags are shared with inspect and extract.
func parseUploadArgs(c *cli.Context) (*uploadArgs, error) {
	input, output := c.String("inputPath"), c.String("outputPath")
	if input == "" || output == "" {
		return nil, fmt.Errorf("both --inputPath and --outputPath are required")
	}
	if err := storage.CheckScheme(output, c.StringSlice("scheme")); err != nil {
		return nil, err
	}
	loc, err := storage.ParseLocation(output)
	if err != nil {
		return nil, err
	}

	sizeLimit, err := parseSize("sizeLimit", c.String("sizeLimit"))
	if err != nil {
		return nil, err
	}
	batchSizeLimit, err := parseSize("batchSizeLimit", c.String("batchSizeLimit"))
	if err != nil {
		return nil, err
	}
	if batchSizeLimit <= 0 {
		return nil, fmt.Errorf("batchSizeLimit must be positive")
	}
	if sizeLimit > batchSizeLimit {
		return nil, fmt.Errorf("sizeLimit (%s) must not exceed batchSizeLimit (%s)",
			humanize.IBytes(uint64(sizeLimit)), humanize.IBytes(uint64(batchSizeLimit)))
	}

	return &uploadArgs{
		input:          input,
		location:       loc,
		tempFilePrefix: c.String("tempFilePrefix"),
		sizeLimit:      sizeLimit,
		batchSizeLimit: batchSizeLimit,
	}, nil
}

func parseSize(name, value string) (int64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid %s %q: too large", name, value)
	}
	return int64(n), nil
}

func runUpload(cfg *config.Config) cli.ActionFunc {
	return func(c *cli.Context) error {
		logger.SetLevel(c.String("log-level"))
		log := logger.Log

		args, err := parseUploadArgs(c)
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}

		ctx := c.Context
		store, err := storage.Open(ctx, args.location, cfg.Store)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open %s: %v", args.location, err), exitFatal)
		}

		reporters := []report.Reporter{report.LogReporter{Log: log}}
		if cfg.Report.RedisURL != "" {
			rr, err := report.NewRedisReporter(ctx, cfg.Report)
			if err != nil {
				log.Warn().Err(err).Msg("redis reporting disabled")
			} else {
				defer rr.Close()
				reporters = append(reporters, rr)
			}
		}

		log.Info().
			Str("input", args.input).
			Str("output", args.location.String()).
			Str("size_limit", humanize.IBytes(uint64(args.sizeLimit))).
			Str("batch_size_limit", humanize.IBytes(uint64(args.batchSizeLimit))).
			Msg("starting upload")

		summary, err := uploader.New(store, uploader.Options{
			InputPath:      args.input,
			OutputDir:      args.location.Path,
			TempFilePrefix: args.tempFilePrefix,
			SizeLimit:      args.sizeLimit,
			BatchSizeLimit: args.batchSizeLimit,
			Logger:         &log,
		}).Run(ctx)
		if summary != nil {
			report.ReportAll(ctx, log, summary, reporters...)
		}
		if err != nil {
			log.Error().Stack().Err(err).Msg("upload aborted")
			return cli.Exit(fmt.Sprintf("upload failed: %v", err), exitFatal)
		}
		return nil
	}
}
