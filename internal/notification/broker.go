package notification

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Broker fans live notifications out to open SSE streams.
type Broker interface {
	Publish(ctx context.Context, userID uint, payload []byte) error
	// Subscribe returns a payload channel and a close func.
	Subscribe(ctx context.Context, userID uint) (<-chan string, func() error)
}

func channelFor(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

type RedisBroker struct {
	Client *redis.Client
}

func (b *RedisBroker) Publish(ctx context.Context, userID uint, payload []byte) error {
	return b.Client.Publish(ctx, channelFor(userID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID uint) (<-chan string, func() error) {
	sub := b.Client.Subscribe(ctx, channelFor(userID))
	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close
}
