package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultInboxCapacity bounds how many messages an inbox keeps.
const DefaultInboxCapacity = 1000

const unmarkTimeout = 2 * time.Second

// Message is one inbound customer message.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Name      string    `json:"name,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbox stores inbound messages delivered by the webhook until the adapter
// reads them. The Cloud API has no history endpoint, so this is the only
// way the adapter sees messages.
type Inbox interface {
	// Add stores msgs. Messages already stored (same ID) are ignored.
	Add(ctx context.Context, msgs ...Message) error

	// Since returns messages at or after t, newest first.
	Since(ctx context.Context, t time.Time) ([]Message, error)
}

// MemoryInbox is an in-process Inbox.
type MemoryInbox struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]bool
	msgs     []Message
}

var _ Inbox = (*MemoryInbox)(nil)

// NewMemoryInbox creates an in-memory inbox keeping at most capacity
// messages. Zero selects DefaultInboxCapacity.
func NewMemoryInbox(capacity int) *MemoryInbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &MemoryInbox{capacity: capacity, seen: make(map[string]bool)}
}

func (m *MemoryInbox) Add(_ context.Context, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if m.seen[msg.ID] {
			continue
		}
		m.seen[msg.ID] = true
		m.msgs = append(m.msgs, msg)
	}
	sort.SliceStable(m.msgs, func(i, j int) bool {
		return m.msgs[i].Timestamp.After(m.msgs[j].Timestamp)
	})
	if len(m.msgs) > m.capacity {
		for _, dropped := range m.msgs[m.capacity:] {
			delete(m.seen, dropped.ID)
		}
		m.msgs = m.msgs[:m.capacity]
	}
	return nil
}

func (m *MemoryInbox) Since(_ context.Context, t time.Time) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.msgs {
		if msg.Timestamp.Before(t) {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

// RedisInbox keeps messages in a sorted set scored by unix milliseconds.
// Webhook retries are deduplicated with a SETNX marker per message id.
type RedisInbox struct {
	rdb      *redis.Client
	key      string
	dedupTTL time.Duration
	capacity int64
	logger   *zap.Logger
}

var _ Inbox = (*RedisInbox)(nil)

// NewRedisInbox creates an inbox under keyPrefix.
func NewRedisInbox(rdb *redis.Client, keyPrefix string, logger *zap.Logger) *RedisInbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisInbox{
		rdb:      rdb,
		key:      keyPrefix + ":whatsapp:inbox",
		dedupTTL: 24 * time.Hour,
		capacity: DefaultInboxCapacity,
		logger:   logger,
	}
}

func (r *RedisInbox) dedupKey(id string) string {
	return r.key + ":seen:" + id
}

func (r *RedisInbox) Add(ctx context.Context, msgs ...Message) error {
	for _, msg := range msgs {
		first, err := r.rdb.SetNX(ctx, r.dedupKey(msg.ID), 1, r.dedupTTL).Result()
		marked := err == nil && first
		if err != nil {
			// Storing a duplicate beats losing a message.
			r.logger.Warn("inbox dedup check failed", zap.String("message_id", msg.ID), zap.Error(err))
			first = true
		}
		if !first {
			r.logger.Debug("skipping duplicate webhook delivery", zap.String("message_id", msg.ID))
			continue
		}

		if err := r.store(ctx, msg); err != nil {
			// A marker without a stored message would make the retry
			// look like a duplicate and lose the message for good.
			if marked {
				r.unmark(ctx, msg.ID)
			}
			return err
		}
	}

	// Keep the newest capacity entries.
	if err := r.rdb.ZRemRangeByRank(ctx, r.key, 0, -r.capacity-1).Err(); err != nil {
		r.logger.Warn("inbox trim failed", zap.Error(err))
	}
	return nil
}

func (r *RedisInbox) store(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	if err := r.rdb.ZAdd(ctx, r.key, redis.Z{
		Score:  float64(msg.Timestamp.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("store message %s: %w", msg.ID, err)
	}
	return nil
}

// unmark drops the dedup marker for id. It runs even when ctx is done since
// a canceled request is the usual reason the store failed.
func (r *RedisInbox) unmark(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unmarkTimeout)
	defer cancel()
	if err := r.rdb.Del(ctx, r.dedupKey(id)).Err(); err != nil {
		r.logger.Warn("inbox dedup release failed", zap.String("message_id", id), zap.Error(err))
	}
}

func (r *RedisInbox) Since(ctx context.Context, t time.Time) ([]Message, error) {
	raw, err := r.rdb.ZRevRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(t.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Warn("skipping corrupt inbox entry", zap.Error(err))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
