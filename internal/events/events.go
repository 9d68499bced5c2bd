package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	ImageStored     Type = "image.stored"
	ImageDeleted    Type = "image.deleted"
	MetadataUpdated Type = "metadata.updated"
	MetadataDeleted Type = "metadata.deleted"

	// Cleanup is not an image event. The scheduler puts it on the same
	// stream so the worker has a single consumer loop.
	Cleanup Type = "cleanup"
)

type Event struct {
	Type       Type
	Account    string
	Identifier string
	At         time.Time
}

func (e Event) Values() map[string]any {
	return map[string]any{
		"type":            string(e.Type),
		"account":         e.Account,
		"imageIdentifier": e.Identifier,
		"at":              strconv.FormatInt(e.At.Unix(), 10),
	}
}

// FromValues rebuilds an event from a stream entry's fields.
func FromValues(values map[string]any) (Event, error) {
	str := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}

	e := Event{
		Type:       Type(str("type")),
		Account:    str("account"),
		Identifier: str("imageIdentifier"),
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	if raw := str("at"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("parse at: %w", err)
		}
		e.At = time.Unix(ts, 0).UTC()
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: e.Values(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
