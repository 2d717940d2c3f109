package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/segpack/internal/config"
	"github.com/andresuchdata/segpack/pkg/logger"
)

const (
	exitUsage = 1
	exitFatal = 2
)

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:  "segpack",
		Usage: "Pack small files into segments and upload everything to object storage",
		Flags: uploadFlags(cfg),
		Commands: []*cli.Command{
			{
				Name:   "upload",
				Usage:  "Upload a local tree, packing small files into segments",
				Flags:  uploadFlags(cfg),
				Action: runUpload(cfg),
			},
			{
				Name:      "inspect",
				Usage:     "List the records of a local segment file",
				ArgsUsage: "<segment-file>",
				Action:    runInspect,
			},
			{
				Name:      "extract",
				Usage:     "Unpack the records of a local segment file into a directory",
				ArgsUsage: "<segment-file> <dir>",
				Action:    runExtract,
			},
		},
		Action: runUpload(cfg),
	}
}

func main() {
	cfg := config.Load()
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	// cli.Exit errors terminate inside Run with their own code
	if err := newApp(cfg).Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("segpack failed")
		os.Exit(exitUsage)
	}
}
