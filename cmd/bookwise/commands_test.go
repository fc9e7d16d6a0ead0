package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/bookwise/internal/storage"
)

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorGreen, "hello"); strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorGreen, "hello"); !strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestRunImport(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("BOOKWISE_DATA_DIR", dataDir)
	t.Setenv("BOOKWISE_AUTH_SECRET", "test-secret")

	catalog := filepath.Join(t.TempDir(), "catalog.txt")
	content := "Dune | Frank Herbert | Science Fiction | 4.7 | 1965 | Desert planet politics.\n"
	if err := os.WriteFile(catalog, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	if err := runImport(catalog); err != nil {
		t.Fatalf("runImport failed: %v", err)
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("reopening storage: %v", err)
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Books != 1 || stats.Authors != 1 {
		t.Fatalf("unexpected stats after import: %+v", stats)
	}
}

func TestRunImportMissingFile(t *testing.T) {
	t.Setenv("BOOKWISE_DATA_DIR", t.TempDir())
	t.Setenv("BOOKWISE_AUTH_SECRET", "test-secret")

	if err := runImport(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
