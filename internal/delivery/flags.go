package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionFlags remembers, per visitor session, which event title already had
// its companion web page published.
type SessionFlags interface {
	Published(ctx context.Context, session, title string) (bool, error)
	MarkPublished(ctx context.Context, session, title string) error
}

// MemoryFlags keeps flags in process memory. Entries expire after the same
// TTL RedisFlags uses and are swept on write.
type MemoryFlags struct {
	mu     sync.Mutex
	titles map[string]memoryFlag
	ttl    time.Duration
	now    func() time.Time
}

type memoryFlag struct {
	title   string
	expires time.Time
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{
		titles: make(map[string]memoryFlag),
		ttl:    defaultFlagTTL,
		now:    time.Now,
	}
}

func (m *MemoryFlags) Published(_ context.Context, session, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	got, ok := m.titles[session]
	if ok && !m.now().Before(got.expires) {
		delete(m.titles, session)
		return false, nil
	}
	return ok && got.title == title, nil
}

func (m *MemoryFlags) MarkPublished(_ context.Context, session, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, flag := range m.titles {
		if !now.Before(flag.expires) {
			delete(m.titles, key)
		}
	}
	m.titles[session] = memoryFlag{title: title, expires: now.Add(m.ttl)}
	return nil
}

const defaultFlagTTL = 24 * time.Hour

// RedisFlags stores flags in Redis so every API replica sees them.
type RedisFlags struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisFlags(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisFlags {
	if prefix == "" {
		prefix = "boothflow:webpage"
	}
	if ttl <= 0 {
		ttl = defaultFlagTTL
	}
	return &RedisFlags{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisFlags) key(session string) string {
	return fmt.Sprintf("%s:%s", r.prefix, session)
}

func (r *RedisFlags) Published(ctx context.Context, session, title string) (bool, error) {
	got, err := r.client.Get(ctx, r.key(session)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session flag: %w", err)
	}
	return got == title, nil
}

func (r *RedisFlags) MarkPublished(ctx context.Context, session, title string) error {
	if err := r.client.Set(ctx, r.key(session), title, r.ttl).Err(); err != nil {
		return fmt.Errorf("write session flag: %w", err)
	}
	return nil
}
