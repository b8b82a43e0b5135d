package gcsuploader

import (
	"context"
	"io"

	"github.com/dvloznov/keyword-bid-charts/internal/table"
)

// ChartPublisher uploads a run's chart directory.
// This interface enables mocking of the bucket in pipeline tests.
type ChartPublisher interface {
	PublishDir(ctx context.Context, root, dir string) ([]string, error)
	io.Closer
}

var (
	_ table.Source   = (*Source)(nil)
	_ ChartPublisher = (*Publisher)(nil)
)
