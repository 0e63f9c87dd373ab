package broker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/storypipe/internal/obs"
)

// Reaper periodically requeues inflight messages whose visibility deadline
// has elapsed without an Ack, the redelivery mechanism the at-least-once
// guarantee depends on when a worker crashes or stalls mid-job.
type Reaper struct {
	client   *Client
	interval time.Duration
}

// NewReaper creates a Reaper for the given broker Client.
func NewReaper(client *Client, interval time.Duration) *Reaper {
	return &Reaper{client: client, interval: interval}
}

// Run blocks, scanning on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.scanOnce(ctx); err != nil {
				log.Error().Err(err).Msg("reaper scan failed")
			} else if n > 0 {
				obs.ReaperRecovered.Add(float64(n))
				log.Info().Int("recovered", n).Str("queue", r.client.queue).Msg("reaper recovered expired jobs")
			}
			if _, err := r.client.PromoteDelayed(ctx); err != nil {
				log.Error().Err(err).Msg("reaper promote delayed failed")
			}
		}
	}
}

// scanOnce finds deadline entries that have expired and moves the
// corresponding inflight message back onto the main queue, incrementing its
// attempt counter.
func (r *Reaper) scanOnce(ctx context.Context) (int, error) {
	now := time.Now().Unix()
	expired, err := r.client.rdb.ZRangeByScore(ctx, r.client.deadlineKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, raw := range expired {
		h := &Handle{raw: raw}
		if err := json.Unmarshal([]byte(raw), &h.Envelope); err != nil {
			// Can't even parse it, drop it from bookkeeping so it stops
			// showing up in every scan.
			r.client.rdb.LRem(ctx, r.client.inflightKey(), 1, raw)
			r.client.rdb.ZRem(ctx, r.client.deadlineKey(), raw)
			continue
		}

		if err := r.client.Nack(ctx, h, 0); err != nil {
			log.Error().Err(err).Str("story_id", h.Envelope.StoryID.String()).Msg("reaper requeue failed")
			continue
		}
		recovered++
	}
	return recovered, nil
}
