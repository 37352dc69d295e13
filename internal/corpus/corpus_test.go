package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDirSourceSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"c.txt":     "third",
		"a.txt":     "first",
		"b.txt":     "second",
		"notes.md":  "skipped by pattern",
		"z.txt.bak": "skipped by pattern",
	})
	if err := os.Mkdir(filepath.Join(dir, "d.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	docs, err := NewDirSource(dir, "*.txt", 2).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []Document{
		{ID: filepath.Join(dir, "a.txt"), Label: "a.txt", Content: "first"},
		{ID: filepath.Join(dir, "b.txt"), Label: "b.txt", Content: "second"},
		{ID: filepath.Join(dir, "c.txt"), Label: "c.txt", Content: "third"},
	}
	if !reflect.DeepEqual(docs, want) {
		t.Errorf("Load() = %+v, want %+v", docs, want)
	}
}

func TestDirSourceDefaults(t *testing.T) {
	s := NewDirSource("somewhere", "", 0)
	if s.Pattern != "*" || s.Concurrency != defaultReadConcurrency {
		t.Errorf("NewDirSource defaults = %q/%d", s.Pattern, s.Concurrency)
	}
}

func TestDirSourceMissingDir(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), "*", 1).Load(context.Background())
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing directory")
	}
}

func TestDirSourceBadPattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "x"})
	if _, err := NewDirSource(dir, "[", 1).Load(context.Background()); err == nil {
		t.Fatal("Load() error = nil, want pattern error")
	}
}

func TestDirSourceCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.txt": "x", "b.txt": "y"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDirSource(dir, "*", 1).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{Documents: []Document{
		{ID: "2", Label: "two", Content: "b"},
		{ID: "1", Label: "one", Content: "a"},
	}}
	docs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if docs[0].ID != "2" || docs[1].ID != "1" {
		t.Errorf("Load() reordered documents: %+v", docs)
	}
	docs[0].ID = "mutated"
	if src.Documents[0].ID != "2" {
		t.Error("Load() returned the backing slice")
	}
}

func TestValidateDuplicates(t *testing.T) {
	src := &StaticSource{Documents: []Document{{ID: "a"}, {ID: "b"}, {ID: "a"}}}
	if _, err := src.Load(context.Background()); !errors.Is(err, apperrors.ErrDuplicateDocument) {
		t.Fatalf("Load() error = %v, want ErrDuplicateDocument", err)
	}
}

func TestLabels(t *testing.T) {
	got := Labels([]Document{{ID: "/books/a.txt", Label: "a.txt"}, {ID: "7", Label: "Seven"}})
	want := map[string]string{"/books/a.txt": "a.txt", "7": "Seven"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
}

func TestNewFromConfig(t *testing.T) {
	src, err := NewFromConfig(config.CorpusConfig{Source: config.SourceDir, Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewFromConfig(dir) error = %v", err)
	}
	ds, ok := src.(*DirSource)
	if !ok {
		t.Fatalf("source = %T, want *DirSource", src)
	}
	if err := ds.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	if _, err := NewFromConfig(config.CorpusConfig{Source: config.SourcePostgres, Table: "documents"}, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("postgres without db: err = %v, want ErrInvalidInput", err)
	}
	if _, err := NewFromConfig(config.CorpusConfig{Source: "s3"}, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("unknown source: err = %v, want ErrInvalidInput", err)
	}
}

func TestDirSourcePingMissing(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "gone"), "", 0)
	if err := src.Ping(context.Background()); err == nil {
		t.Error("Ping() on missing dir returned nil")
	}
}
