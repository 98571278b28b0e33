package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPoolSize = 10
	DefaultMaxIdle  = 5
	DefaultMinIdle  = 1
)

// DialOptions describes the pool a Driver should build.
type DialOptions struct {
	Addr     string
	Password string
	TLS      bool
	DB       int
	Timeout  time.Duration
	PoolSize int
	MinIdle  int
	MaxIdle  int
}

// Pool is a live set of server connections. Each call borrows one
// connection for its duration and returns it on every exit path.
type Pool interface {
	// Do sends a command and returns the decoded native reply. An absent
	// reply is returned as (nil, nil).
	Do(ctx context.Context, args ...any) (any, error)
	// Ping borrows a connection, which authenticates and selects the
	// configured database, and checks the server answers.
	Ping(ctx context.Context) error
	Close() error
}

// Driver builds pools. It is the session's only link to the wire protocol.
type Driver interface {
	Open(ctx context.Context, opts DialOptions) (Pool, error)
}

// ServerError is implemented by errors that carry a reply the server sent,
// as opposed to network or client failures.
type ServerError interface {
	error
	RedisError()
}

// RedisDriver opens pools backed by go-redis.
type RedisDriver struct{}

// Open builds a go-redis client configured from opts. Connections are dialed
// lazily; AUTH and SELECT run on every new connection.
func (RedisDriver) Open(_ context.Context, opts DialOptions) (Pool, error) {
	if opts.Addr == "" {
		return nil, errors.New("transport: empty address")
	}

	ro := &redis.Options{
		Addr:             opts.Addr,
		Password:         opts.Password,
		DB:               opts.DB,
		DialTimeout:      opts.Timeout,
		ReadTimeout:      opts.Timeout,
		WriteTimeout:     opts.Timeout,
		PoolTimeout:      opts.Timeout,
		PoolSize:         opts.PoolSize,
		MinIdleConns:     opts.MinIdle,
		MaxIdleConns:     opts.MaxIdle,
		MaxRetries:       -1,
		DisableIndentity: true,
	}
	if opts.TLS {
		host, _, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			host = opts.Addr
		}
		ro.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		}
	}

	return &redisPool{client: redis.NewClient(ro)}, nil
}

type redisPool struct {
	client *redis.Client
}

func (p *redisPool) Do(ctx context.Context, args ...any) (any, error) {
	reply, err := p.client.Do(ctx, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return reply, err
}

func (p *redisPool) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *redisPool) Close() error {
	return p.client.Close()
}
