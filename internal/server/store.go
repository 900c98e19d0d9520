package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MeKo-Tech/crbook/internal/doctype"
)

// ErrNotStaged is returned when no upload is staged for a session and type.
var ErrNotStaged = errors.New("no image uploaded")

// Store keeps uploaded images between /upload and /process.
type Store interface {
	Put(ctx context.Context, session string, t doctype.Type, data []byte) error
	Get(ctx context.Context, session string, t doctype.Type) ([]byte, error)
	Delete(ctx context.Context, session string, t doctype.Type) error
	Close() error
}

func stageKey(session string, t doctype.Type) string {
	return session + ":" + string(t)
}

type stagedImage struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a process-local Store. Entries expire after the TTL.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]stagedImage
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]stagedImage)}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, session string, t doctype.Type, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.pruneLocked(now)
	m.entries[stageKey(session, t)] = stagedImage{data: data, expires: now.Add(m.ttl)}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, session string, t doctype.Type) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stageKey(session, t)
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotStaged
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, ErrNotStaged
	}
	return e.data, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, session string, t doctype.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, stageKey(session, t))
	return nil
}

// Len returns the number of staged images, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close drops every staged image.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

func (m *MemoryStore) pruneLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore stages uploads in Redis so that several server replicas can
// share sessions.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStoreWithClient(client, opts.KeyPrefix, opts.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(session string, t doctype.Type) string {
	return r.prefix + stageKey(session, t)
}

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, session string, t doctype.Type, data []byte) error {
	if err := r.client.Set(ctx, r.key(session, t), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, session string, t doctype.Type) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(session, t)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotStaged
	}
	if err != nil {
		return nil, fmt.Errorf("load staged upload: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, session string, t doctype.Type) error {
	if err := r.client.Del(ctx, r.key(session, t)).Err(); err != nil {
		return fmt.Errorf("clear staged upload: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
