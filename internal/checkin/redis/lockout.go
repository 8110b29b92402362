package redis

import (
	"context"
	"fmt"
	"time"

	"checkin-gate/internal/logger"

	"github.com/go-redis/redis/v8"
)

const keyFailPrefix = "gate:key_fail:"

// KeyGuard counts wrong operator keys per client and locks the client out
// once MaxFailures is reached inside the Window.
type KeyGuard struct {
	Client      *redis.Client
	Logger      *logger.Logger
	MaxFailures int
	Window      time.Duration
}

func NewKeyGuard(client *redis.Client, log *logger.Logger, maxFailures int, window time.Duration) *KeyGuard {
	return &KeyGuard{
		Client:      client,
		Logger:      log,
		MaxFailures: maxFailures,
		Window:      window,
	}
}

func failKey(client string) string {
	return keyFailPrefix + client
}

// Locked reports whether client has used up its failures.
func (g *KeyGuard) Locked(ctx context.Context, client string) (bool, error) {
	n, err := g.Client.Get(ctx, failKey(client)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= g.MaxFailures, nil
}

// RecordFailure bumps the counter and returns the new count. The window
// starts at the first failure and is not extended by later ones.
func (g *KeyGuard) RecordFailure(ctx context.Context, client string) (int, error) {
	key := failKey(client)

	n, err := g.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := g.Client.Expire(ctx, key, g.Window).Err(); err != nil {
			return 0, err
		}
	}

	count := int(n)
	if count == g.MaxFailures && g.Logger != nil {
		g.Logger.LogSecurity("LOCKOUT", fmt.Sprintf("client %s locked out for %s", client, g.Window))
	}
	return count, nil
}

// Clear forgets earlier failures after a correct key.
func (g *KeyGuard) Clear(ctx context.Context, client string) error {
	return g.Client.Del(ctx, failKey(client)).Err()
}
