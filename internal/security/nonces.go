package security

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore remembers nonces for ttl. Claim reports false when the nonce
// was already used.
type NonceStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisNonces struct {
	client *redis.Client
}

func NewRedisNonces(client *redis.Client) *RedisNonces {
	return &RedisNonces{client: client}
}

func (n *RedisNonces) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return n.client.SetNX(ctx, "sig:"+key, "1", ttl).Result()
}

// MemoryNonces is the single-process fallback used when Redis is disabled.
type MemoryNonces struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{seen: make(map[string]time.Time), now: time.Now}
}

func (n *MemoryNonces) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	for k, exp := range n.seen {
		if now.After(exp) {
			delete(n.seen, k)
		}
	}
	if _, ok := n.seen[key]; ok {
		return false, nil
	}
	n.seen[key] = now.Add(ttl)
	return true, nil
}
