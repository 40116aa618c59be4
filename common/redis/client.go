package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by Get when the key does not exist
var ErrKeyNotFound = errors.New("key not found")

// Logger is the subset of the service logger the client needs
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Options describes how to reach the Redis server
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Client carries sessions, cached anchors and commit broadcasts
type Client struct {
	rdb *redis.Client
	log Logger
}

// NewClient wraps an existing go-redis client
func NewClient(rdb *redis.Client, log Logger) *Client {
	return &Client{rdb: rdb, log: log}
}

// Dial connects and pings. The ping uses DialTimeout (5s when unset).
func Dial(ctx context.Context, opts Options, log Logger) (*Client, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	log.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return NewClient(rdb, log), nil
}

// Raw exposes the go-redis client for scripts (rate limiter)
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// Get returns the stored bytes; a missing key yields ErrKeyNotFound
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case err != nil:
		c.log.Warn("redis get failed", "key", key, "error", err)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. ttl 0 keeps the key until deleted.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", "key", key, "error", err)
		return fmt.Errorf("set %s: %w", key, err)
	}
	c.log.Debug("redis set", "key", key, "ttl", ttl)
	return nil
}

// Del removes keys; missing keys are ignored
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("redis del failed", "keys", keys, "error", err)
		return fmt.Errorf("del %v: %w", keys, err)
	}
	return nil
}

// Publish sends payload to every subscriber of channel
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	n, err := c.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		c.log.Warn("redis publish failed", "channel", channel, "error", err)
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	c.log.Debug("redis publish", "channel", channel, "receivers", n)
	return nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}
