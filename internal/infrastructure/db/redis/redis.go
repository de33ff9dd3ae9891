// Package redis keeps failed-login counters in Redis so the lockout holds
// across server replicas and restarts.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	throttleClientName = "task-manager-login-throttle"
	defaultDialTimeout = 5 * time.Second
	// Counter reads and writes sit on the login path.
	defaultOpTimeout = 500 * time.Millisecond
)

// ThrottleConfig describes the Redis instance holding the login counters
// and the lockout policy applied to them.
type ThrottleConfig struct {
	Addr string
	DB   int

	MaxFailures int
	Window      time.Duration

	DialTimeout time.Duration
	OpTimeout   time.Duration
}

func (c ThrottleConfig) options() *redis.Options {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	op := c.OpTimeout
	if op <= 0 {
		op = defaultOpTimeout
	}
	return &redis.Options{
		Addr:         c.Addr,
		DB:           c.DB,
		ClientName:   throttleClientName,
		DialTimeout:  dial,
		ReadTimeout:  op,
		WriteTimeout: op,
		MaxRetries:   1,
	}
}

// OpenThrottle connects to the counter store, checks it with a PING and
// returns a LoginThrottle over it. The caller closes the returned client.
func OpenThrottle(ctx context.Context, cfg ThrottleConfig) (*LoginThrottle, *redis.Client, error) {
	opts := cfg.options()
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("login throttle redis ping %s: %w", cfg.Addr, err)
	}
	return NewLoginThrottle(client, cfg.MaxFailures, cfg.Window), client, nil
}
