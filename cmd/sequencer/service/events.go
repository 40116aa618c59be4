package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/queue"
)

// TopicCommitted is the in-process topic for successful commits
const TopicCommitted = "schedule.committed"

// ChannelCommitted is the Redis channel commits are relayed to
const ChannelCommitted = "sequencer:committed"

// CommitEvent describes a committed batch
type CommitEvent struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Mode     string    `json:"mode"`
	Plant    string    `json:"plant"`
	Rows     int       `json:"rows"`
	Username string    `json:"username"`
}

// RelayCommits forwards commit events from the queue to a Publisher
func RelayCommits(ctx context.Context, q queue.Queue, pub Publisher, log *logger.Logger) error {
	return q.Subscribe(ctx, TopicCommitted, func(ctx context.Context, key string, value []byte) error {
		if err := pub.Publish(ctx, ChannelCommitted, value); err != nil {
			return fmt.Errorf("relay commit event: %w", err)
		}
		log.Debug("commit event relayed", "plant", key, "channel", ChannelCommitted)
		return nil
	})
}
