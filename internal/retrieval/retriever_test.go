package retrieval

import (
	"context"
	"errors"
	"testing"
)

// mockEmbedClient returns a fixed vector per text.
type mockEmbedClient struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func TestRetrieve(t *testing.T) {
	vs := openVectorStore(t)
	err := vs.Insert([]Record{
		{ID: "v1", BookID: 7, SourceType: "book", TextChunk: "\"The Hobbit\" by J. R. R. Tolkien. Genre: Fantasy.", Embedding: []float32{1, 0, 0}},
		{ID: "v2", BookID: 8, SourceType: "book", TextChunk: "\"Dune\" by Frank Herbert. Genre: Science Fiction.", Embedding: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	embedder := NewEmbedder(&mockEmbedClient{
		vectors: map[string][]float32{"a book about hobbits": {1, 0, 0}},
	}, "nomic-embed-text")
	r := NewRetriever(embedder, vs)

	passages, err := r.Retrieve(context.Background(), "a book about hobbits", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(passages) != 1 {
		t.Fatalf("got %d passages, want 1", len(passages))
	}
	if passages[0].BookID != 7 {
		t.Errorf("BookID = %d, want 7", passages[0].BookID)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	vs := openVectorStore(t)
	embedder := NewEmbedder(&mockEmbedClient{err: errors.New("model down")}, "nomic-embed-text")
	r := NewRetriever(embedder, vs)

	if _, err := r.Retrieve(context.Background(), "anything", 3); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestEmbedBatch(t *testing.T) {
	embedder := NewEmbedder(&mockEmbedClient{
		vectors: map[string][]float32{
			"a": {1, 0},
			"b": {0, 1},
		},
	}, "nomic-embed-text")

	vecs, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors out of order: %v", vecs)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	embedder := NewEmbedder(&mockEmbedClient{}, "nomic-embed-text")
	vecs, err := embedder.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}
