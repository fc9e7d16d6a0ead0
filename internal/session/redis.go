package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session transcripts in Redis, one JSON document per
// session with a sliding TTL. Turn serialization uses per-process mutexes,
// which is sufficient for a single server instance; multi-instance
// deployments would need a distributed lock instead.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type redisSession struct {
	Turns      []Turn `json:"turns"`
	LastIntent string `json:"last_intent"`
}

// NewRedisStore connects to Redis at the given URL and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, maxTurns int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{
		client:   client,
		ttl:      ttl,
		maxTurns: maxTurns,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func key(id string) string {
	return "session:" + id
}

// Lock acquires the per-session mutex for turn serialization.
func (s *RedisStore) Lock(id string) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *RedisStore) load(ctx context.Context, id string) (redisSession, error) {
	data, err := s.client.Get(ctx, key(id)).Result()
	if err == redis.Nil {
		return redisSession{}, nil
	}
	if err != nil {
		return redisSession{}, fmt.Errorf("loading session %s: %w", id, err)
	}

	var sess redisSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return redisSession{}, fmt.Errorf("unmarshaling session %s: %w", id, err)
	}
	return sess, nil
}

func (s *RedisStore) save(ctx context.Context, id string, sess redisSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

// Transcript returns the session's turns.
func (s *RedisStore) Transcript(ctx context.Context, id string) ([]Turn, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

// Append adds turns and refreshes the session TTL.
func (s *RedisStore) Append(ctx context.Context, id string, turns ...Turn) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.Turns = append(sess.Turns, turns...)
	if s.maxTurns > 0 {
		for len(sess.Turns) > s.maxTurns {
			drop := 2
			if drop > len(sess.Turns) {
				drop = len(sess.Turns)
			}
			sess.Turns = sess.Turns[drop:]
		}
	}
	return s.save(ctx, id, sess)
}

func (s *RedisStore) SetLastIntent(ctx context.Context, id, intent string) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.LastIntent = intent
	return s.save(ctx, id, sess)
}

func (s *RedisStore) LastIntent(ctx context.Context, id string) (string, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.LastIntent, nil
}
