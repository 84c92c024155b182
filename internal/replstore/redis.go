package replstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"watershed/api/internal/util"
)

// RedisStore implements Store on Redis: one hash per path for the
// replicated entries, one pub/sub channel per path for live delivery.
// Replay (HGETALL) and tail (pub/sub) overlap, so an entry may be
// delivered twice around subscribe time; that is within the at-least-once
// contract.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis at redisURL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "repl:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "repl:"}
}

func (s *RedisStore) key(path string) string {
	return s.prefix + path
}

// Put upserts value under path/key and publishes it to subscribers.
func (s *RedisStore) Put(ctx context.Context, path, key string, value any) error {
	return s.write(ctx, path, key, value)
}

// Set appends value under a generated key and publishes it.
func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	return s.write(ctx, path, util.NewID(""), value)
}

func (s *RedisStore) write(ctx context.Context, path, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", path, err)
	}
	if err := s.client.HSet(ctx, s.key(path), key, raw).Err(); err != nil {
		return fmt.Errorf("store write %s: %w", path, err)
	}
	envelope, err := json.Marshal(Entry{Path: path, Key: key, Value: raw})
	if err != nil {
		return fmt.Errorf("marshal envelope for %s: %w", path, err)
	}
	if err := s.client.Publish(ctx, s.key(path), envelope).Err(); err != nil {
		return fmt.Errorf("store publish %s: %w", path, err)
	}
	return nil
}

// Subscribe replays the existing hash entries for path and then tails the
// pub/sub channel until cancellation.
func (s *RedisStore) Subscribe(ctx context.Context, path string) (<-chan Entry, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	// Open the channel before the replay read so writes landing between
	// the two are not lost; duplicates are the subscriber's problem.
	pubsub := s.client.Subscribe(subCtx, s.key(path))
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("store subscribe %s: %w", path, err)
	}

	out := make(chan Entry, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		existing, err := s.client.HGetAll(subCtx, s.key(path)).Result()
		if err != nil {
			// Treated as "not yet synced": the tail below still delivers
			// anything that arrives later.
			log.Printf("replstore: replay %s: %v", path, err)
		}
		for key, raw := range existing {
			entry := Entry{Path: path, Key: key, Value: json.RawMessage(raw)}
			select {
			case out <- entry:
			case <-subCtx.Done():
				return
			}
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var entry Entry
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					log.Printf("replstore: bad envelope on %s: %v", path, err)
					continue
				}
				select {
				case out <- entry:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
