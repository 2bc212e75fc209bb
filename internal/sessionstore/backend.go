package sessionstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound はキーが存在しないか期限切れであることを表します。
var ErrNotFound = errors.New("session not found")

// Backend はセッション値の保存先です。
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisBackend は Redis に TTL 付きで保存します。
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend は RedisBackend を作成します。
func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, key, data, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, key).Err()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend はプロセス内に保存します。単一インスタンスの開発用です。
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend は MemoryBackend を作成します。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (b *MemoryBackend) Load(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !b.now().Before(e.expiresAt) {
		delete(b.entries, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (b *MemoryBackend) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sweepLocked()
	stored := make([]byte, len(data))
	copy(stored, data)
	b.entries[key] = memoryEntry{data: stored, expiresAt: b.now().Add(ttl)}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Len は保持している件数を返します。
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *MemoryBackend) sweepLocked() {
	now := b.now()
	for k, e := range b.entries {
		if !now.Before(e.expiresAt) {
			delete(b.entries, k)
		}
	}
}
