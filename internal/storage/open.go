package storage

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/andresuchdata/segpack/internal/config"
)

// Open connects to the store serving loc.
func Open(ctx context.Context, loc Location, cfg config.StoreConfig) (Store, error) {
	switch loc.Scheme {
	case "s3":
		return NewS3Store(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		}, loc.Bucket)
	case "gs":
		return NewGCSStore(loc.Bucket, cfg.GCSPrefix)
	case "file":
		return NewFSStore(afero.NewOsFs()), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, loc.Scheme)
}
