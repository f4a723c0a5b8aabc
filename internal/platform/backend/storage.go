package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStorage persists the session of each browser session id.
// Load returns (nil, nil) when nothing is stored.
type TokenStorage interface {
	Load(ctx context.Context, sid string) (*Session, error)
	Save(ctx context.Context, sid string, s *Session) error
	Delete(ctx context.Context, sid string) error
}

// MemoryStorage keeps sessions in process memory.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]Session)}
}

func (m *MemoryStorage) Load(_ context.Context, sid string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStorage) Save(_ context.Context, sid string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sid] = *s
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sid)
	return nil
}

// RedisStorage keeps sessions in Redis so every replica sees them.
type RedisStorage struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStorage stores each session for ttl, which should cover the
// refresh token lifetime.
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func sessionKey(sid string) string {
	return "portal:session:" + sid
}

func (r *RedisStorage) Load(ctx context.Context, sid string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStorage) Save(ctx context.Context, sid string, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(sid), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
