package retrieval

import (
	"testing"

	"github.com/kalambet/bookwise/internal/storage"
)

func openVectorStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewSQLiteStore(s.DB())
}

func TestInsertAndCount(t *testing.T) {
	vs := openVectorStore(t)

	err := vs.Insert([]Record{
		{ID: "v1", BookID: 1, SourceType: "book", TextChunk: "a fantasy tale", Embedding: []float32{1, 0, 0}},
		{ID: "v2", BookID: 2, SourceType: "book", TextChunk: "a space opera", Embedding: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := vs.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestSearch_TopKOrdering(t *testing.T) {
	vs := openVectorStore(t)

	err := vs.Insert([]Record{
		{ID: "v1", BookID: 1, SourceType: "book", TextChunk: "exact match", Embedding: []float32{1, 0, 0}},
		{ID: "v2", BookID: 2, SourceType: "book", TextChunk: "close match", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "v3", BookID: 3, SourceType: "book", TextChunk: "orthogonal", Embedding: []float32{0, 0, 1}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := vs.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "v1" || results[1].ID != "v2" {
		t.Errorf("order = [%s, %s], want [v1, v2]", results[0].ID, results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %f < %f", results[0].Score, results[1].Score)
	}
	if results[0].TextChunk != "exact match" {
		t.Errorf("TextChunk = %q", results[0].TextChunk)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	vs := openVectorStore(t)

	results, err := vs.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_ZeroQueryVector(t *testing.T) {
	vs := openVectorStore(t)
	if err := vs.Insert([]Record{{ID: "v1", BookID: 1, SourceType: "book", TextChunk: "x", Embedding: []float32{1, 0}}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := vs.Search([]float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("got %v, want nil for zero query", results)
	}
}

func TestDeleteByBook(t *testing.T) {
	vs := openVectorStore(t)

	err := vs.Insert([]Record{
		{ID: "v1", BookID: 1, SourceType: "book", TextChunk: "keep", Embedding: []float32{1, 0}},
		{ID: "v2", BookID: 2, SourceType: "book", TextChunk: "drop a", Embedding: []float32{0, 1}},
		{ID: "v3", BookID: 2, SourceType: "book", TextChunk: "drop b", Embedding: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := vs.DeleteByBook(2); err != nil {
		t.Fatalf("DeleteByBook: %v", err)
	}

	n, err := vs.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decodeFloat32s: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestDecodeFloat32s_Corrupt(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for non-multiple-of-4 blob")
	}
}
