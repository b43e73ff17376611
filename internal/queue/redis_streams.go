package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maumercado/jobrunner-go/internal/config"
)

// RedisStreams implements the dispatch queue on a single Redis stream with a
// consumer group. Entries carry only the task id; all mutable task state
// lives in the task store.
type RedisStreams struct {
	client       *redis.Client
	stream       string
	group        string
	blockTimeout time.Duration // how long ReadNew blocks waiting for an entry
	claimMinIdle time.Duration // min idle before AutoClaim steals a PEL entry
	claimCount   int64
}

// Entry is one delivered stream entry.
type Entry struct {
	ID     string // stream entry id, used for acknowledgement
	TaskID uint
}

// NewRedisStreams creates the client and idempotently creates the consumer
// group, starting at 0 with MKSTREAM so already-queued entries are not lost.
func NewRedisStreams(cfg *config.RedisConfig, queueCfg *config.QueueConfig) (*RedisStreams, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	q := &RedisStreams{
		client:       client,
		stream:       queueCfg.Stream,
		group:        queueCfg.ConsumerGroup,
		blockTimeout: queueCfg.BlockTimeout,
		claimMinIdle: queueCfg.ClaimMinIdle,
		claimCount:   int64(queueCfg.ClaimCount),
	}
	if q.claimCount <= 0 {
		q.claimCount = 1
	}

	if err := q.EnsureGroup(ctx); err != nil {
		return nil, err
	}

	return q, nil
}

// EnsureGroup creates the consumer group, tolerating "already exists".
func (q *RedisStreams) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Publish appends a task reference to the stream. Entry ids are strictly
// increasing.
func (q *RedisStreams) Publish(ctx context.Context, taskID uint) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"task_id": strconv.FormatUint(uint64(taskID), 10),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish task %d: %w", taskID, err)
	}
	return id, nil
}

// ReadNew blocks up to the configured timeout for one new entry delivered
// exclusively to this consumer. Returns (nil, nil) on timeout. A malformed
// entry is acked in place and skipped.
func (q *RedisStreams) ReadNew(ctx context.Context, consumer string) (*Entry, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    q.blockTimeout,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	entry, ok := parseEntry(msg)
	if !ok {
		q.client.XAck(ctx, q.stream, q.group, msg.ID)
		return nil, nil
	}
	return &entry, nil
}

// AutoClaim transfers ownership of PEL entries idle longer than the
// configured threshold to this consumer. Concurrent sweepers are safe: Redis
// hands any given entry to at most one claimer per sweep.
func (q *RedisStreams) AutoClaim(ctx context.Context, consumer string) ([]Entry, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimMinIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to autoclaim: %w", err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		entry, ok := parseEntry(msg)
		if !ok {
			q.client.XAck(ctx, q.stream, q.group, msg.ID)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ack removes an entry from the pending entries list.
func (q *RedisStreams) Ack(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, entryID).Err(); err != nil {
		return fmt.Errorf("failed to ack entry %s: %w", entryID, err)
	}
	return nil
}

// PendingCount returns the number of delivered-but-unacked entries.
func (q *RedisStreams) PendingCount(ctx context.Context) (int64, error) {
	groups, err := q.client.XInfoGroups(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to inspect stream: %w", err)
	}
	for _, g := range groups {
		if g.Name == q.group {
			return g.Pending, nil
		}
	}
	return 0, nil
}

// Reset deletes the stream key and recreates the consumer group. Used by the
// admin system reset.
func (q *RedisStreams) Reset(ctx context.Context) error {
	if err := q.client.Del(ctx, q.stream).Err(); err != nil {
		return fmt.Errorf("failed to delete stream: %w", err)
	}
	return q.EnsureGroup(ctx)
}

// Close closes the Redis connection.
func (q *RedisStreams) Close() error {
	return q.client.Close()
}

// Client returns the underlying Redis client for collaborators that share
// the connection (event publishing).
func (q *RedisStreams) Client() *redis.Client {
	return q.client
}

func parseEntry(msg redis.XMessage) (Entry, bool) {
	raw, ok := msg.Values["task_id"].(string)
	if !ok {
		return Entry{}, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{ID: msg.ID, TaskID: uint(id)}, true
}
