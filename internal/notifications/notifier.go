// Package notifications publishes lifecycle events into Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PublishedChannel carries an event for every capsule that leaves incubation.
const PublishedChannel = "capsules:published"

// PublishedEvent is the payload sent when a capsule becomes visible. EventID
// lets subscribers deduplicate redelivered messages.
type PublishedEvent struct {
	EventID     string    `json:"event_id"`
	CapsuleID   uint      `json:"capsule_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Notifier provides helpers to publish events into Redis channels. A nil
// Redis client turns every publish into a no-op so the app runs without Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishCapsules announces freshly published capsules on PublishedChannel,
// one message per capsule.
func (n *Notifier) PublishCapsules(ctx context.Context, capsuleIDs []uint, at time.Time) error {
	if n.rdb == nil {
		return nil
	}
	for _, id := range capsuleIDs {
		payload, err := json.Marshal(PublishedEvent{
			EventID:     uuid.NewString(),
			CapsuleID:   id,
			PublishedAt: at,
		})
		if err != nil {
			return fmt.Errorf("marshal published event: %w", err)
		}
		if err := n.rdb.Publish(ctx, PublishedChannel, payload).Err(); err != nil {
			return err
		}
	}
	return nil
}
