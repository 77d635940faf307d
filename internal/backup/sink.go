package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/isdelr/notesync-be/internal/config"
)

// Sink stores finished backup archives.
type Sink interface {
	// Put stores size bytes from r under name and returns where they went.
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)
}

// NewSinkFromConfig creates a Sink implementation based on the backup config.
func NewSinkFromConfig(ctx context.Context, cfg config.BackupConfig) (Sink, error) {
	switch cfg.Sink {
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem backup sink requires dir to be set")
		}
		return NewFilesystemSink(cfg.Dir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 backup sink requires s3_bucket to be set")
		}
		return NewS3Sink(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backup sink: %s", cfg.Sink)
	}
}
