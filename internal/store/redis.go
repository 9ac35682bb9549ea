package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/pkg/models"
)

// RedisStore persists session state as one versioned blob per session id.
type RedisStore struct {
	pool      *redis.Pool
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds connection settings for the session store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires idle sessions; zero keeps them forever (shift rollover is
	// handled upstream, the TTL is a safety net against abandoned sessions).
	TTL time.Duration
}

// NewRedisStore creates a RedisStore with a connection pool and verifies
// connectivity with a PING.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	pool := &redis.Pool{
		MaxIdle:     4,
		MaxActive:   16,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialDatabase(cfg.DB)}
			if cfg.Password != "" {
				opts = append(opts, redis.DialPassword(cfg.Password))
			}
			return redis.DialContext(ctx, "tcp", cfg.Addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "plantao:session:"
	}

	log.Info().Str("addr", cfg.Addr).Str("prefix", prefix).Msg("Redis session store connected")
	return &RedisStore{pool: pool, keyPrefix: prefix, ttl: cfg.TTL}, nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.pool.Close()
}

func (r *RedisStore) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

// Load fetches and decodes the session blob, or returns a fresh default when
// the key is absent.
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	blob, err := redis.Bytes(conn.Do("GET", r.key(sessionID)))
	if err == redis.ErrNil {
		return models.NewSessionState(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", sessionID, err)
	}

	state, err := models.DecodeState(blob)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return state, nil
}

// Save encodes and stores the state. The SET is the single durability point
// for one message's processing: it either lands whole or not at all.
func (r *RedisStore) Save(ctx context.Context, state *models.SessionState) error {
	blob, err := models.EncodeState(state)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	if r.ttl > 0 {
		_, err = conn.Do("SET", r.key(state.SessionID), blob, "EX", int64(r.ttl.Seconds()))
	} else {
		_, err = conn.Do("SET", r.key(state.SessionID), blob)
	}
	if err != nil {
		return fmt.Errorf("redis save %s: %w", state.SessionID, err)
	}
	return nil
}
