package gcsuploader

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/keyword-bid-charts/internal/logger"
)

// Publisher copies rendered charts to a bucket.
type Publisher struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewPublisher creates a Publisher writing under gs://bucket/prefix.
func NewPublisher(ctx context.Context, bucket, prefix string) (*Publisher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewPublisher: create storage client: %w", err)
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close closes the storage client.
func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// PublishDir uploads every regular file under dir, keeping its path relative
// to root. It returns the gs:// URIs written.
func (p *Publisher) PublishDir(ctx context.Context, root, dir string) ([]string, error) {
	log := logger.FromContext(ctx)

	files, err := relativeFiles(root, dir)
	if err != nil {
		return nil, fmt.Errorf("PublishDir: %w", err)
	}

	var uris []string
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return uris, fmt.Errorf("PublishDir: %w", err)
		}
		object := ObjectName(p.prefix, rel)
		if err := UploadFileWithClient(ctx, p.client, p.bucket, object, filepath.Join(root, rel)); err != nil {
			return uris, fmt.Errorf("PublishDir: %w", err)
		}
		uri := "gs://" + p.bucket + "/" + object
		log.Debug().Str("uri", uri).Msg("Uploaded chart")
		uris = append(uris, uri)
	}

	log.Info().Int("files", len(uris)).Str("bucket", p.bucket).Msg("Published charts")
	return uris, nil
}

// ObjectName joins prefix and a slash-separated relative path.
func ObjectName(prefix, rel string) string {
	return path.Join(prefix, filepath.ToSlash(rel))
}

// relativeFiles lists regular files under dir as paths relative to root.
func relativeFiles(root, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
