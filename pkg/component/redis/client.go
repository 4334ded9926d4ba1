// Package redis 封装 go-redis 客户端, 用于向量缓存.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	redisopts "github.com/BluePanda-io/ai-agent-apis/pkg/options/redis"
)

// Client wraps a go-redis client built from Options.
type Client struct {
	client *goredis.Client
	opts   *redisopts.Options
}

// NewWithContext builds the client and verifies connectivity with PING.
func NewWithContext(ctx context.Context, opts *redisopts.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %w", errors.Join(errs...))
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

func (c *Client) Name() string {
	return "redis"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}
