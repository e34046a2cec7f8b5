package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/domain"
)

// RedisGateway stores sessions in Redis with a TTL matching the session
// expiry, so Redis reaps expired sessions on its own.
type RedisGateway struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGateway connects to Redis and returns a session gateway.
func NewRedisGateway(cfg *config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*RedisGateway, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisGateway{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (g *RedisGateway) Close() error {
	return g.client.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create opens a new session for the user.
func (g *RedisGateway) Create(ctx context.Context, userID string) (domain.Session, error) {
	token, err := newToken()
	if err != nil {
		return domain.Session{}, err
	}

	now := time.Now().UTC()
	s := domain.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshaling session: %w", err)
	}
	if err := g.client.Set(ctx, sessionKey(token), data, g.ttl).Err(); err != nil {
		return domain.Session{}, fmt.Errorf("storing session: %w", err)
	}
	return s, nil
}

// Resolve returns the user bound to the token. A key evicted by its TTL is
// indistinguishable from one that never existed, so both report not-found.
func (g *RedisGateway) Resolve(ctx context.Context, token string) (string, error) {
	data, err := g.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("getting session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return "", fmt.Errorf("unmarshaling session: %w", err)
	}
	if s.Expired(time.Now()) {
		return "", domain.ErrSessionExpired
	}
	return s.UserID, nil
}

// Invalidate destroys the session. Deleting a missing key succeeds, which
// gives the idempotency the logout contract requires.
func (g *RedisGateway) Invalidate(ctx context.Context, token string) error {
	if err := g.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
