package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. The registry mutex is held
// only for lookups; turn processing contends on the per-session turn mutex,
// so distinct sessions never block each other.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	maxTurns int
}

type memSession struct {
	// turnMu serializes whole turns (held via Store.Lock across
	// classify/dispatch/append). dataMu guards the fields below and is only
	// held inside individual accessor calls.
	turnMu     sync.Mutex
	dataMu     sync.RWMutex
	turns      []Turn
	lastIntent string
}

// NewMemoryStore creates a MemoryStore retaining at most maxTurns turns per
// session (oldest dropped in pairs to preserve alternation). maxTurns <= 0
// disables the cap.
func NewMemoryStore(maxTurns int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		maxTurns: maxTurns,
	}
}

func (s *MemoryStore) get(id string) *memSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &memSession{}
		s.sessions[id] = sess
	}
	return sess
}

// Lock acquires the session's turn mutex, creating the session lazily.
func (s *MemoryStore) Lock(id string) func() {
	sess := s.get(id)
	sess.turnMu.Lock()
	return sess.turnMu.Unlock
}

// Transcript returns a copy of the session's turns.
func (s *MemoryStore) Transcript(ctx context.Context, id string) ([]Turn, error) {
	sess := s.get(id)
	sess.dataMu.RLock()
	defer sess.dataMu.RUnlock()
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Append adds turns, evicting the oldest pairs once the cap is exceeded.
func (s *MemoryStore) Append(ctx context.Context, id string, turns ...Turn) error {
	sess := s.get(id)
	sess.dataMu.Lock()
	defer sess.dataMu.Unlock()
	sess.turns = append(sess.turns, turns...)
	if s.maxTurns > 0 {
		for len(sess.turns) > s.maxTurns {
			drop := 2
			if drop > len(sess.turns) {
				drop = len(sess.turns)
			}
			sess.turns = sess.turns[drop:]
		}
	}
	return nil
}

func (s *MemoryStore) SetLastIntent(ctx context.Context, id, intent string) error {
	sess := s.get(id)
	sess.dataMu.Lock()
	defer sess.dataMu.Unlock()
	sess.lastIntent = intent
	return nil
}

func (s *MemoryStore) LastIntent(ctx context.Context, id string) (string, error) {
	sess := s.get(id)
	sess.dataMu.RLock()
	defer sess.dataMu.RUnlock()
	return sess.lastIntent, nil
}
