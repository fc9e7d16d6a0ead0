// Package ingest keeps the vector index in step with the catalog: a polling
// worker embeds newly added books, and the importer loads catalog files.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
)

// BookSource lists books awaiting indexing and records completion.
type BookSource interface {
	UnindexedBooks(ctx context.Context, limit int) ([]storage.Book, error)
	MarkBookIndexed(ctx context.Context, id int64) error
}

// ContentEmbedder generates embeddings for text.
type ContentEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorWriter is the write side of the vector index.
type VectorWriter interface {
	Insert(records []retrieval.Record) error
	DeleteByBook(bookID int64) error
}

// Worker embeds unindexed books into the vector store in the background.
type Worker struct {
	books    BookSource
	embedder ContentEmbedder
	vectors  VectorWriter
	poll     time.Duration
	batch    int
	logger   *slog.Logger
}

// NewWorker creates a Worker. A pollInterval <= 0 defaults to 2s.
func NewWorker(books BookSource, embedder ContentEmbedder, vectors VectorWriter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{
		books:    books,
		embedder: embedder,
		vectors:  vectors,
		poll:     pollInterval,
		batch:    16,
		logger:   slog.Default(),
	}
}

// Run polls for unindexed books until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("indexing iteration failed", "error", err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce indexes one batch of unindexed books and returns how many it
// processed. A book that fails to embed is skipped and retried on a later
// pass; it stays unindexed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	books, err := w.books.UnindexedBooks(ctx, w.batch)
	if err != nil {
		return 0, fmt.Errorf("listing unindexed books: %w", err)
	}

	indexed := 0
	for _, book := range books {
		if err := w.indexBook(ctx, book); err != nil {
			w.logger.Warn("indexing book failed", "book_id", book.ID, "title", book.Title, "error", err)
			continue
		}
		indexed++
	}
	return indexed, nil
}

func (w *Worker) indexBook(ctx context.Context, book storage.Book) error {
	passage := Passage(book)

	vec, err := w.embedder.Embed(ctx, passage)
	if err != nil {
		return fmt.Errorf("embedding content: %w", err)
	}

	// Replace any stale records first so re-indexing an updated book never
	// leaves both the old and new passage behind.
	if err := w.vectors.DeleteByBook(book.ID); err != nil {
		return fmt.Errorf("clearing stale vectors: %w", err)
	}

	rec := retrieval.Record{
		ID:         uuid.New().String(),
		BookID:     book.ID,
		SourceType: "book",
		TextChunk:  passage,
		Embedding:  vec,
		CreatedAt:  time.Now().UTC(),
	}
	if err := w.vectors.Insert([]retrieval.Record{rec}); err != nil {
		return fmt.Errorf("inserting vector: %w", err)
	}

	if err := w.books.MarkBookIndexed(ctx, book.ID); err != nil {
		return fmt.Errorf("marking indexed: %w", err)
	}
	return nil
}

// Passage renders a book as the text that gets embedded and retrieved. The
// labels matter: they give the chat model enough structure to cite title and
// author from the retrieved chunk.
func Passage(book storage.Book) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", book.Title)
	if book.AuthorName != "" {
		fmt.Fprintf(&b, "Author: %s\n", book.AuthorName)
	}
	if book.Genre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", book.Genre)
	}
	if book.Description != "" {
		fmt.Fprintf(&b, "Description: %s", book.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
