// Package broker implements the Broker Client: a Redis-backed durable queue
// with visibility-timeout semantics (claim, heartbeat-renew, ack, nack), in
// the spirit of SQS. Redis has no native consumer-group redelivery the way
// Kafka does, so this package models it explicitly with a claim list plus a
// deadline sorted-set and a periodic reaper, rather than relying on a
// transport that was never built for at-least-once redelivery.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Envelope is the JSON message carried through the queue.
type Envelope struct {
	StoryID    uuid.UUID `json:"story_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handle identifies one claimed, in-flight message. Ack/Nack/RenewVisibility
// all operate on it.
type Handle struct {
	Envelope Envelope
	raw      string
}

// Client is a durable at-least-once queue backed by Redis lists and a
// deadline sorted set.
type Client struct {
	rdb               *redis.Client
	queue             string
	visibilityTimeout time.Duration
	pollInterval      time.Duration
}

// New creates a broker Client bound to a single named queue.
func New(rdb *redis.Client, queueName string, visibilityTimeout, pollInterval time.Duration) *Client {
	return &Client{
		rdb:               rdb,
		queue:             queueName,
		visibilityTimeout: visibilityTimeout,
		pollInterval:      pollInterval,
	}
}

func (c *Client) mainKey() string     { return "queue:" + c.queue }
func (c *Client) inflightKey() string { return "queue:" + c.queue + ":inflight" }
func (c *Client) deadlineKey() string { return "queue:" + c.queue + ":deadlines" }

// Enqueue pushes a new job envelope (attempt 1) onto the queue.
func (c *Client) Enqueue(ctx context.Context, storyID uuid.UUID) error {
	return c.push(ctx, Envelope{StoryID: storyID, Attempt: 1, EnqueuedAt: time.Now()})
}

func (c *Client) push(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return c.rdb.LPush(ctx, c.mainKey(), data).Err()
}

// Dequeue blocks up to pollInterval for a message, atomically moving it to
// the inflight list and stamping a visibility deadline. Returns (nil, nil) on
// a timeout with no message available.
func (c *Client) Dequeue(ctx context.Context) (*Handle, error) {
	raw, err := c.rdb.BRPopLPush(ctx, c.mainKey(), c.inflightKey(), c.pollInterval).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Poison message: remove it from inflight so it doesn't wedge the
		// reaper forever, and surface the error for the caller to log.
		c.rdb.LRem(ctx, c.inflightKey(), 1, raw)
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	deadline := time.Now().Add(c.visibilityTimeout)
	if err := c.rdb.ZAdd(ctx, c.deadlineKey(), redis.Z{Score: float64(deadline.Unix()), Member: raw}).Err(); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	return &Handle{Envelope: env, raw: raw}, nil
}

// RenewVisibility pushes a handle's deadline further into the future. Called
// periodically by long-running processing so the reaper doesn't redeliver a
// job that's still being worked on.
func (c *Client) RenewVisibility(ctx context.Context, h *Handle) error {
	deadline := time.Now().Add(c.visibilityTimeout)
	return c.rdb.ZAdd(ctx, c.deadlineKey(), redis.Z{Score: float64(deadline.Unix()), Member: h.raw}).Err()
}

// Ack removes a handle from the inflight list and deadline set permanently.
func (c *Client) Ack(ctx context.Context, h *Handle) error {
	pipe := c.rdb.TxPipeline()
	pipe.LRem(ctx, c.inflightKey(), 1, h.raw)
	pipe.ZRem(ctx, c.deadlineKey(), h.raw)
	_, err := pipe.Exec(ctx)
	return err
}

// Nack removes a handle from in-flight bookkeeping and re-enqueues it with
// the attempt counter incremented, either immediately or after `delay`.
func (c *Client) Nack(ctx context.Context, h *Handle, delay time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.LRem(ctx, c.inflightKey(), 1, h.raw)
	pipe.ZRem(ctx, c.deadlineKey(), h.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear inflight: %w", err)
	}

	next := h.Envelope
	next.Attempt++

	if delay <= 0 {
		return c.push(ctx, next)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	score := float64(time.Now().Add(delay).Unix())
	return c.rdb.ZAdd(ctx, "queue:"+c.queue+":delayed", redis.Z{Score: score, Member: data}).Err()
}

// PromoteDelayed moves any delayed-nack entries whose release time has
// passed back onto the main queue. Intended to run on the same cadence as
// the reaper.
func (c *Client) PromoteDelayed(ctx context.Context) (int, error) {
	key := "queue:" + c.queue + ":delayed"
	now := float64(time.Now().Unix())
	members, err := c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return 0, err
	}
	for _, m := range members {
		if err := c.rdb.LPush(ctx, c.mainKey(), m).Err(); err != nil {
			return 0, err
		}
		if err := c.rdb.ZRem(ctx, key, m).Err(); err != nil {
			return 0, err
		}
	}
	if len(members) > 0 {
		log.Debug().Int("count", len(members)).Str("queue", c.queue).Msg("promoted delayed jobs")
	}
	return len(members), nil
}
