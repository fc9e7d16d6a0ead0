package retrieval

import "time"

// VectorStore is the interface for vector storage and similarity search over
// indexed book content. The default implementation uses SQLite with
// brute-force cosine similarity, which is plenty for a catalog-sized corpus.
type VectorStore interface {
	// Insert adds records to the index.
	Insert(records []Record) error

	// Search returns the top-K records most similar to the query vector.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// DeleteByBook removes all records derived from the given book.
	DeleteByBook(bookID int64) error

	// Count returns the number of indexed records.
	Count() (int, error)
}

// Record is one indexed passage of book or author content.
type Record struct {
	ID         string
	BookID     int64
	SourceType string // "book" or "author"
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
