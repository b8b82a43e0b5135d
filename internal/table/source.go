package table

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source lists and opens input files. Local disk and GCS implement it.
type Source interface {
	// List returns the names matching a glob pattern.
	List(ctx context.Context, pattern string) ([]string, error)

	// Open opens a name returned by List (or any exact name).
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalSource reads from the local filesystem.
type LocalSource struct{}

// List implements Source using filepath.Glob.
func (LocalSource) List(ctx context.Context, pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	return matches, nil
}

// Open implements Source.
func (LocalSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Mux routes names to a Source by URI scheme ("gs" for "gs://...").
// Names without a scheme go to the local source.
type Mux struct {
	local   Source
	schemes map[string]Source
}

// NewMux creates a Mux backed by local for plain paths.
func NewMux(local Source) *Mux {
	return &Mux{local: local, schemes: make(map[string]Source)}
}

// Handle registers src for names starting with "<scheme>://".
func (m *Mux) Handle(scheme string, src Source) {
	m.schemes[scheme] = src
}

func (m *Mux) route(name string) (Source, error) {
	scheme, _, ok := strings.Cut(name, "://")
	if !ok {
		return m.local, nil
	}
	src, ok := m.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("no source registered for scheme %q", scheme)
	}
	return src, nil
}

// List implements Source.
func (m *Mux) List(ctx context.Context, pattern string) ([]string, error) {
	src, err := m.route(pattern)
	if err != nil {
		return nil, err
	}
	return src.List(ctx, pattern)
}

// Open implements Source.
func (m *Mux) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	src, err := m.route(name)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, name)
}
