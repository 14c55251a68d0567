package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned for unknown, expired or already consumed state.
var ErrStateNotFound = errors.New("oauth state not found")

// OAuthState is what the handshake remembers between start and callback.
type OAuthState struct {
	RedirectTo string    `json:"redirectTo"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StateStore holds one-shot OAuth state keyed by the state parameter.
type StateStore interface {
	Save(ctx context.Context, key string, state OAuthState) error
	// Consume returns and deletes the state. A key can be consumed once.
	Consume(ctx context.Context, key string) (*OAuthState, error)
}

// MemoryStateStore keeps state in process. Use RedisStateStore when running
// more than one replica.
type MemoryStateStore struct {
	cache *ttlcache.Cache
	ttl   time.Duration
}

// NewMemoryStateStore creates an in-memory store whose entries expire after ttl.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true)
	return &MemoryStateStore{cache: cache, ttl: ttl}
}

func (s *MemoryStateStore) Save(_ context.Context, key string, state OAuthState) error {
	return s.cache.SetWithTTL(key, state, s.ttl)
}

func (s *MemoryStateStore) Consume(_ context.Context, key string) (*OAuthState, error) {
	value, err := s.cache.Get(key)
	if errors.Is(err, ttlcache.ErrNotFound) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	// Only the caller whose Remove succeeds owns the state.
	if err := s.cache.Remove(key); err != nil {
		if errors.Is(err, ttlcache.ErrNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	state := value.(OAuthState)
	return &state, nil
}

// Close stops the expiry goroutine.
func (s *MemoryStateStore) Close() error {
	return s.cache.Close()
}

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

const redisKeyPrefix = "recipebox:oauth_state:"

// RedisStateStore shares state between replicas.
type RedisStateStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStateStore creates a store backed by client.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Save(ctx context.Context, key string, state OAuthState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	if !ok {
		return fmt.Errorf("save oauth state: duplicate key")
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, key string) (*OAuthState, error) {
	payload, err := s.client.GetDel(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	var state OAuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}
	return &state, nil
}
