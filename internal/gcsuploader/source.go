package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// Source reads report files from GCS. Patterns are "gs://bucket/glob",
// where the glob follows path.Match and is applied to object names.
type Source struct {
	client *storage.Client
}

// NewSource creates a Source with its own storage client.
func NewSource(ctx context.Context) (*Source, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewSource: create storage client: %w", err)
	}
	return &Source{client: client}, nil
}

// Close closes the storage client.
func (s *Source) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// List returns the gs:// URIs of the objects matching pattern.
func (s *Source) List(ctx context.Context, pattern string) ([]string, error) {
	bucket, glob, err := ParseGCSURI(pattern)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	if _, err := path.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("List: bad pattern %q: %w", pattern, err)
	}

	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: globPrefix(glob)})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: listing gs://%s: %w", bucket, err)
		}
		names = append(names, attrs.Name)
	}

	return matchObjects(bucket, glob, names), nil
}

// Open opens a gs:// object for reading.
func (s *Source) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: reading object %s/%s: %w", bucket, object, err)
	}
	return r, nil
}

// globPrefix is the literal part of glob before its first metacharacter,
// used to narrow the object listing.
func globPrefix(glob string) string {
	if i := strings.IndexAny(glob, `*?[\`); i >= 0 {
		return glob[:i]
	}
	return glob
}

// matchObjects keeps the object names matching glob and returns them as
// sorted gs:// URIs.
func matchObjects(bucket, glob string, names []string) []string {
	var uris []string
	for _, name := range names {
		if ok, _ := path.Match(glob, name); ok {
			uris = append(uris, "gs://"+bucket+"/"+name)
		}
	}
	sort.Strings(uris)
	return uris
}
