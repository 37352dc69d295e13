package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const defaultReadConcurrency = 8

// DirSource reads every regular file in Dir whose name matches Pattern.
// Files are read concurrently but returned sorted by file name.
type DirSource struct {
	Dir         string
	Pattern     string
	Concurrency int
	logger      *slog.Logger
}

func NewDirSource(dir, pattern string, concurrency int) *DirSource {
	if pattern == "" {
		pattern = "*"
	}
	if concurrency <= 0 {
		concurrency = defaultReadConcurrency
	}
	return &DirSource{
		Dir:         dir,
		Pattern:     pattern,
		Concurrency: concurrency,
		logger:      slog.Default().With("component", "dir-corpus"),
	}
}

func (s *DirSource) Load(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", s.Dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ok, err := filepath.Match(s.Pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("matching pattern %q: %w", s.Pattern, err)
		}
		if ok {
			names = append(names, entry.Name())
		}
	}

	docs := make([]Document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(s.Dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading document %s: %w", path, err)
			}
			docs[i] = Document{
				ID:      path,
				Label:   name,
				Content: string(data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug("corpus loaded from directory",
		"dir", s.Dir,
		"pattern", s.Pattern,
		"documents", len(docs),
	)
	return docs, nil
}

// Ping reports whether Dir is still a readable directory.
func (s *DirSource) Ping(ctx context.Context) error {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus directory %s is not a directory", s.Dir)
	}
	return nil
}
