package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kalambet/bookwise/internal/storage"
)

const sampleCatalog = `# title | author | genre | rating | year | description
Dune | Frank Herbert | Science Fiction | 4.7 | 1965 | Desert planet politics.
The Hobbit | J. R. R. Tolkien | Fantasy | 4.4 | 1937 | There and back again.
Emma | Jane Austen | Romance | 4.1 | 1815 | Matchmaking in Highbury.

not a catalog line
Emma | Jane Austen | Romance | 4.1 | 1815 | Matchmaking in Highbury.
`

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}
	return path
}

func TestImportFile(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	path := writeCatalog(t, "catalog.txt", sampleCatalog)

	stats, err := ImportFile(ctx, store, path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if stats.Books != 3 {
		t.Fatalf("Books = %d, want 3", stats.Books)
	}
	if stats.Authors != 3 {
		t.Fatalf("Authors = %d, want 3", stats.Authors)
	}
	// One malformed line, one duplicate book.
	if stats.Skipped != 2 {
		t.Fatalf("Skipped = %d, want 2", stats.Skipped)
	}

	author, err := store.GetAuthorByExactName(ctx, "Frank Herbert")
	if err != nil {
		t.Fatalf("author not created: %v", err)
	}
	books, err := store.FindBooksByAuthor(ctx, author.ID, 10)
	if err != nil {
		t.Fatalf("FindBooksByAuthor failed: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Dune" || books[0].PublishedYear != 1965 {
		t.Fatalf("unexpected books: %+v", books)
	}

	// Imported books start unindexed so the worker picks them up.
	pending, err := store.UnindexedBooks(ctx, 10)
	if err != nil {
		t.Fatalf("UnindexedBooks failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("%d books pending indexing, want 3", len(pending))
	}
}

func TestImportFileReusesExistingAuthor(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if _, err := store.CreateAuthor(ctx, "Jane Austen", "English novelist."); err != nil {
		t.Fatalf("seed author: %v", err)
	}

	path := writeCatalog(t, "catalog.txt", "Emma | Jane Austen | Romance | 4.1 | 1815 | Matchmaking.\n")
	stats, err := ImportFile(ctx, store, path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if stats.Authors != 0 {
		t.Fatalf("Authors = %d, want 0 (already present)", stats.Authors)
	}
	if stats.Books != 1 {
		t.Fatalf("Books = %d, want 1", stats.Books)
	}
}

func TestImportFileMissing(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if _, err := ImportFile(context.Background(), store, filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestParseCatalogLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"valid", "Dune | Frank Herbert | SF | 4.7 | 1965 | sand", true},
		{"too few fields", "Dune | Frank Herbert | SF", false},
		{"bad rating", "Dune | Frank Herbert | SF | ten | 1965 | sand", false},
		{"rating out of range", "Dune | Frank Herbert | SF | 7.5 | 1965 | sand", false},
		{"bad year", "Dune | Frank Herbert | SF | 4.7 | MCMLXV | sand", false},
		{"empty title", " | Frank Herbert | SF | 4.7 | 1965 | sand", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := parseCatalogLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}
