package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/bookwise/internal/storage"
)

// Catalog is the slice of the store the importer writes through.
type Catalog interface {
	GetAuthorByExactName(ctx context.Context, name string) (storage.Author, error)
	CreateAuthor(ctx context.Context, name, biography string) (storage.Author, error)
	InsertBook(ctx context.Context, book storage.Book) (storage.Book, error)
}

// ImportStats summarizes one import run.
type ImportStats struct {
	Books   int // inserted
	Authors int // created
	Skipped int // duplicates or malformed lines
}

// ImportFile loads a catalog file into the store. PDF files are reduced to
// plain text first; everything else is read as text. Each non-empty line is
// one book:
//
//	Title | Author | Genre | Rating | Year | Description
//
// Missing authors are created on the fly. Duplicate books and lines that do
// not parse are counted as skipped, not errors. Inserted books start
// unindexed, so the catalog worker picks them up.
func ImportFile(ctx context.Context, store Catalog, path string) (ImportStats, error) {
	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = extractPDF(path)
	} else {
		text, err = readTextFile(path)
	}
	if err != nil {
		return ImportStats{}, err
	}
	return importText(ctx, store, text)
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading catalog file: %w", err)
	}
	return string(data), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(data), nil
}

func importText(ctx context.Context, store Catalog, text string) (ImportStats, error) {
	var stats ImportStats
	authors := map[string]storage.Author{}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		book, authorName, ok := parseCatalogLine(line)
		if !ok {
			stats.Skipped++
			continue
		}

		author, cached := authors[strings.ToLower(authorName)]
		if !cached {
			var created bool
			var err error
			author, created, err = ensureAuthor(ctx, store, authorName)
			if err != nil {
				return stats, err
			}
			if created {
				stats.Authors++
			}
			authors[strings.ToLower(authorName)] = author
		}

		book.AuthorID = author.ID
		if _, err := store.InsertBook(ctx, book); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("inserting %q: %w", book.Title, err)
		}
		stats.Books++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("scanning catalog: %w", err)
	}
	return stats, nil
}

func ensureAuthor(ctx context.Context, store Catalog, name string) (storage.Author, bool, error) {
	author, err := store.GetAuthorByExactName(ctx, name)
	if err == nil {
		return author, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Author{}, false, fmt.Errorf("looking up author %q: %w", name, err)
	}

	author, err = store.CreateAuthor(ctx, name, "")
	if err != nil {
		return storage.Author{}, false, fmt.Errorf("creating author %q: %w", name, err)
	}
	return author, true, nil
}

func parseCatalogLine(line string) (storage.Book, string, bool) {
	parts := strings.Split(line, "|")
	if len(parts) != 6 {
		return storage.Book{}, "", false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" || parts[1] == "" {
		return storage.Book{}, "", false
	}

	rating, err := strconv.ParseFloat(parts[3], 64)
	if err != nil || rating < 0 || rating > 5 {
		return storage.Book{}, "", false
	}
	year, err := strconv.Atoi(parts[4])
	if err != nil {
		return storage.Book{}, "", false
	}

	return storage.Book{
		Title:         parts[0],
		Genre:         parts[2],
		Description:   parts[5],
		AverageRating: rating,
		PublishedYear: year,
	}, parts[1], true
}
