package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryStore_LazyCreate(t *testing.T) {
	s := NewMemoryStore(0)

	turns, err := s.Transcript(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("fresh session has %d turns, want 0", len(turns))
	}
}

func TestMemoryStore_AppendOrder(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.Append(ctx, "s1", Human("hi"))
	s.Append(ctx, "s1", Assistant("hello"))
	s.Append(ctx, "s1", Human("top 3 books in fantasy"))

	turns, err := s.Transcript(ctx, "s1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[0].Content != "hi" || turns[2].Content != "top 3 books in fantasy" {
		t.Errorf("turns out of order: %+v", turns)
	}
}

func TestMemoryStore_TranscriptIsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	s.Append(ctx, "s1", Human("hi"))

	turns, _ := s.Transcript(ctx, "s1")
	turns[0].Content = "mutated"

	again, _ := s.Transcript(ctx, "s1")
	if again[0].Content != "hi" {
		t.Error("Transcript returned a shared slice")
	}
}

func TestMemoryStore_RetentionKeepsAlternation(t *testing.T) {
	s := NewMemoryStore(4)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Append(ctx, "s1", Human(fmt.Sprintf("q%d", i)), Assistant(fmt.Sprintf("a%d", i)))
	}

	turns, _ := s.Transcript(ctx, "s1")
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	// Oldest pairs dropped; alternation preserved starting with a human turn.
	for i, turn := range turns {
		wantRole := RoleHuman
		if i%2 == 1 {
			wantRole = RoleAssistant
		}
		if turn.Role != wantRole {
			t.Errorf("turns[%d].Role = %q, want %q", i, turn.Role, wantRole)
		}
	}
	if turns[0].Content != "q3" {
		t.Errorf("turns[0] = %q, want q3", turns[0].Content)
	}
}

func TestMemoryStore_LastIntent(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	got, _ := s.LastIntent(ctx, "s1")
	if got != "" {
		t.Errorf("fresh LastIntent = %q, want empty", got)
	}

	s.SetLastIntent(ctx, "s1", "greet")
	got, _ = s.LastIntent(ctx, "s1")
	if got != "greet" {
		t.Errorf("LastIntent = %q, want greet", got)
	}
}

func TestMemoryStore_DistinctSessionsIsolated(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			unlock := s.Lock(id)
			defer unlock()
			for j := 0; j < 20; j++ {
				s.Append(ctx, id, Human(fmt.Sprintf("m%d", j)))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		turns, _ := s.Transcript(ctx, fmt.Sprintf("s%d", i))
		if len(turns) != 20 {
			t.Errorf("session s%d has %d turns, want 20", i, len(turns))
		}
	}
}

func TestMemoryStore_LockSerializesSameSession(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	const workers = 4
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				unlock := s.Lock("shared")
				turns, _ := s.Transcript(ctx, "shared")
				s.Append(ctx, "shared", Human(fmt.Sprintf("n%d", len(turns))))
				unlock()
			}
		}()
	}
	wg.Wait()

	turns, _ := s.Transcript(ctx, "shared")
	if len(turns) != workers*perWorker {
		t.Fatalf("got %d turns, want %d (lost updates)", len(turns), workers*perWorker)
	}
}
