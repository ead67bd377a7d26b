// Package redis provides a Redis-backed conversation.Store.
//
// Snapshots are stored as JSON values under a per-conversation key with an
// optional TTL so abandoned conversations expire on their own. The version
// guard is read-then-write: Save loads the stored snapshot, compares
// versions and overwrites only when the incoming version is greater. A
// conversation is driven by a single caller at a time, so the guard protects
// against replayed and out-of-order saves rather than concurrent writers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"goa.design/clue/health"

	"goa.design/plankit/runtime/conversation"
)

type (
	// Options configures the Redis conversation store.
	Options struct {
		// Client is the Redis client. Required.
		Client *redis.Client
		// KeyPrefix is prepended to conversation IDs when building Redis
		// keys. Defaults to "plankit:conversation:".
		KeyPrefix string
		// TTL is the expiry applied to each snapshot on save. Zero means
		// snapshots never expire.
		TTL time.Duration
	}

	// Store persists conversation snapshots in Redis.
	Store struct {
		rdb    commands
		prefix string
		ttl    time.Duration
	}

	// commands is the subset of the go-redis client the store uses.
	// Narrowing the surface keeps the store testable without a server.
	commands interface {
		Get(ctx context.Context, key string) *redis.StringCmd
		Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
		Del(ctx context.Context, keys ...string) *redis.IntCmd
		Ping(ctx context.Context) *redis.StatusCmd
	}
)

// DefaultKeyPrefix is the key prefix used when Options.KeyPrefix is empty.
const DefaultKeyPrefix = "plankit:conversation:"

var (
	_ conversation.Store = (*Store)(nil)
	_ health.Pinger      = (*Store)(nil)
)

// New creates a Redis-backed conversation store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	return newStoreWithCommands(opts.Client, opts.KeyPrefix, opts.TTL)
}

func newStoreWithCommands(rdb commands, prefix string, ttl time.Duration) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

// Name implements health.Pinger.
func (s *Store) Name() string { return "conversation-redis" }

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.rdb.Ping(ctx).Err()
}

// Save implements conversation.Store.
func (s *Store) Save(ctx context.Context, snap *conversation.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("snapshot id is required")
	}
	key := s.key(snap.ID)
	stored, err := s.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// First save for this conversation.
	case err != nil:
		return fmt.Errorf("load stored snapshot: %w", err)
	default:
		var prev conversation.Snapshot
		if err := json.Unmarshal([]byte(stored), &prev); err != nil {
			return fmt.Errorf("decode stored snapshot: %w", err)
		}
		if snap.Version <= prev.Version {
			return conversation.ErrStaleSnapshot
		}
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Load implements conversation.Store.
func (s *Store) Load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	if id == "" {
		return nil, errors.New("conversation id is required")
	}
	stored, err := s.rdb.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap conversation.Snapshot
	if err := json.Unmarshal([]byte(stored), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete implements conversation.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("conversation id is required")
	}
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (s *Store) key(id string) string { return s.prefix + id }
