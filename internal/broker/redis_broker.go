package broker

import (
	"context"
	"encoding/json"

	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventsChannel = "gadgets:events"

// RedisEventBroker implements EventBroker using redis pub/sub, so every API
// node sees the mutations made on the others.
type RedisEventBroker struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisEventBroker(client *redis.Client) *RedisEventBroker {
	return &RedisEventBroker{
		client: client,
		ctx:    context.Background(),
	}
}

func (r *RedisEventBroker) Publish(event GadgetEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, eventsChannel, data).Err()
}

func (r *RedisEventBroker) Subscribe(ctx context.Context) (<-chan GadgetEvent, error) {
	pubsub := r.client.Subscribe(ctx, eventsChannel)

	// Wait for the subscription to be confirmed so no publish is missed after we return
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan GadgetEvent, subscriberBuffer)

	go func() {
		defer close(events)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return

			case redisMsg, ok := <-messages:
				if !ok {
					return
				}

				var event GadgetEvent
				if err := json.Unmarshal([]byte(redisMsg.Payload), &event); err != nil {
					logger.Log.Warn("Dropping undecodable gadget event", zap.Error(err))
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Close leaves the shared client open; its owner closes it
func (r *RedisEventBroker) Close() error {
	return nil
}
