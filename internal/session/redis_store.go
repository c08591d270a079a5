// Package session provides Redis-backed storage for refresh tokens and the
// public share-view snapshot cache.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accord/api/internal/store"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a token or cache entry is missing or expired.
var ErrNotFound = errors.New("session: not found")

// TokenData holds the data stored for each refresh token
type TokenData struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore implements refresh token storage using Redis
type RedisStore struct {
	client        *redis.Client
	refreshPrefix string
	sharePrefix   string
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:        client,
		refreshPrefix: "refresh:",
		sharePrefix:   "share:",
	}
}

func (s *RedisStore) refreshKey(tokenHash string) string {
	return s.refreshPrefix + tokenHash
}

func (s *RedisStore) shareKey(token string) string {
	return s.sharePrefix + token
}

// SaveRefreshSession stores a refresh token with expiration
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	data := TokenData{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   time.Now(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour // Default 30 days
	}

	if err := s.client.Set(ctx, s.refreshKey(tokenHash), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}

	return nil
}

// LookupRefreshSession retrieves a refresh token and returns user info
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	jsonData, err := s.client.Get(ctx, s.refreshKey(tokenHash)).Result()
	if err == redis.Nil {
		return store.User{}, ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return store.User{}, fmt.Errorf("unmarshal token data: %w", err)
	}

	// Default role if empty
	if data.Role == "" {
		data.Role = "viewer"
	}

	return store.User{
		ID:          data.UserID,
		DisplayName: data.DisplayName,
		Role:        data.Role,
	}, nil
}

// RevokeRefreshSession deletes a refresh token
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.refreshKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// CacheSharedSnapshot stores the public view of a shared proposal under its
// share token. Entries are short-lived; a stale read only delays the next
// save becoming visible to the client, never corrupts it.
func (s *RedisStore) CacheSharedSnapshot(ctx context.Context, token string, snapshot []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.shareKey(token), snapshot, ttl).Err(); err != nil {
		return fmt.Errorf("cache shared snapshot: %w", err)
	}
	return nil
}

// GetSharedSnapshot returns the cached public view for a share token.
func (s *RedisStore) GetSharedSnapshot(ctx context.Context, token string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.shareKey(token)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shared snapshot: %w", err)
	}
	return data, nil
}

// InvalidateSharedSnapshot drops the cached view after a save or revoke.
func (s *RedisStore) InvalidateSharedSnapshot(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.shareKey(token)).Err(); err != nil {
		return fmt.Errorf("invalidate shared snapshot: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
