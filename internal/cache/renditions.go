package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mediavault/internal/models"
)

const renditionPrefix = "rendition:"

// RenditionKey names the cached output of a transformation chain. The chain
// is hashed so the key stays short and order-sensitive.
func RenditionKey(account, identifier string, chain []string, ext string) string {
	h := sha256.New()
	for _, t := range chain {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	h.Write([]byte(ext))
	return renditionPrefix + account + ":" + identifier + ":" + hex.EncodeToString(h.Sum(nil))
}

type Renditions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRenditions(client *redis.Client, ttl time.Duration) *Renditions {
	return &Renditions{
		client: client,
		ttl:    ttl,
	}
}

type renditionEntry struct {
	Blob      []byte `json:"blob"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Mime      string `json:"mime"`
	Extension string `json:"extension"`
}

func (r *Renditions) Get(ctx context.Context, key string) (models.ImageState, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ImageState{}, false, nil
	}
	if err != nil {
		return models.ImageState{}, false, fmt.Errorf("get rendition: %w", err)
	}

	var entry renditionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.ImageState{}, false, fmt.Errorf("decode rendition: %w", err)
	}
	return models.ImageState(entry), true, nil
}

func (r *Renditions) Set(ctx context.Context, key string, state models.ImageState) error {
	raw, err := json.Marshal(renditionEntry(state))
	if err != nil {
		return fmt.Errorf("encode rendition: %w", err)
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set rendition: %w", err)
	}
	return nil
}

// Invalidate drops every cached rendition of one image.
func (r *Renditions) Invalidate(ctx context.Context, account, identifier string) (int, error) {
	pattern := renditionPrefix + escapePattern(account) + ":" + escapePattern(identifier) + ":*"

	removed := 0
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			n, err := r.client.Del(ctx, batch...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete renditions: %w", err)
			}
			removed += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan renditions: %w", err)
	}
	if len(batch) > 0 {
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, fmt.Errorf("delete renditions: %w", err)
		}
		removed += int(n)
	}
	return removed, nil
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapePattern(s string) string {
	return patternEscaper.Replace(s)
}
