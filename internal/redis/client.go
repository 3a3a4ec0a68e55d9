package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions is the connection part of the service config.
type ClientOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
}

func (o ClientOptions) redisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	}
	if o.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects and pings. The client backs the doctor locks and
// the readiness check.
func NewRedisClient(ctx context.Context, o ClientOptions) (*redis.Client, error) {
	rdb := redis.NewClient(o.redisOptions())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s db=%d: %w", o.Addr, o.DB, err)
	}

	return rdb, nil
}
