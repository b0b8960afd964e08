package main

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence tracks which users called the backend recently.
type Presence interface {
	Touch(ctx context.Context, username string) error
	Online(ctx context.Context, username string) (bool, error)
}

type memoryPresence struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func newMemoryPresence(window time.Duration) *memoryPresence {
	return &memoryPresence{window: window, now: time.Now, seen: make(map[string]time.Time)}
}

func (p *memoryPresence) Touch(_ context.Context, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[username] = p.now()
	return nil
}

func (p *memoryPresence) Online(_ context.Context, username string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.seen[username]
	return ok && p.now().Sub(last) < p.window, nil
}

// redisPresence keeps one key per user that expires after the window.
type redisPresence struct {
	client *redis.Client
	window time.Duration
	prefix string
}

func newRedisPresence(addr string, window time.Duration) *redisPresence {
	return &redisPresence{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		window: window,
		prefix: "pssi:presence:",
	}
}

func (p *redisPresence) Touch(ctx context.Context, username string) error {
	err := p.client.Set(ctx, p.prefix+username, time.Now().Unix(), p.window).Err()
	return errors.Wrapf(err, "presence touch %s", username)
}

func (p *redisPresence) Online(ctx context.Context, username string) (bool, error) {
	n, err := p.client.Exists(ctx, p.prefix+username).Result()
	if err != nil {
		return false, errors.Wrapf(err, "presence lookup %s", username)
	}
	return n > 0, nil
}

func (p *redisPresence) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *redisPresence) Close() error {
	return p.client.Close()
}
