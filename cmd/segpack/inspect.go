package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/segpack/internal/segment"
)

var errUnsafeKey = errors.New("record key escapes the target directory")

func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: segpack inspect <segment-file>", exitUsage)
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}
	defer f.Close()

	if err := listSegment(c.App.Writer, f); err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}
	return nil
}

func listSegment(w io.Writer, r io.Reader) error {
	sr, err := segment.NewReader(r)
	if err != nil {
		return err
	}
	var (
		count int
		total uint64
	)
	for sr.Next() {
		rec := sr.Record()
		count++
		total += uint64(len(rec.Payload))
		fmt.Fprintf(w, "%s\t%d\n", rec.Key, len(rec.Payload))
	}
	if err := sr.Err(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d records, %s\n", count, humanize.IBytes(total))
	return nil
}

func runExtract(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: segpack extract <segment-file> <dir>", exitUsage)
	}
	f, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}
	defer f.Close()

	n, err := extractSegment(afero.NewOsFs(), f, c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}
	fmt.Fprintf(c.App.Writer, "extracted %d records\n", n)
	return nil
}

// extractSegment writes every record of r to dir/<key>. Nothing is written
// for a record whose key would land outside dir.
func extractSegment(fs afero.Fs, r io.Reader, dir string) (int, error) {
	sr, err := segment.NewReader(r)
	if err != nil {
		return 0, err
	}
	n := 0
	for sr.Next() {
		rec := sr.Record()
		target, err := safeJoin(dir, rec.Key)
		if err != nil {
			return n, err
		}
		if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return n, err
		}
		if err := afero.WriteFile(fs, target, rec.Payload, 0o644); err != nil {
			return n, err
		}
		n++
	}
	return n, sr.Err()
}

func safeJoin(dir, key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", errUnsafeKey, key)
	}
	target := filepath.Join(dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errUnsafeKey, key)
	}
	return target, nil
}
