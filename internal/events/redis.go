package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "quiz:"
	publishTimeout = 5 * time.Second
)

// Channel returns the Redis channel carrying a quiz's events.
func Channel(quizID int64) string {
	return channelPrefix + strconv.FormatInt(quizID, 10)
}

// RedisPublisher publishes events to Redis pub/sub, one channel per quiz.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a Redis-backed publisher.
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Publish sends e to the quiz channel. The request context's cancellation is ignored
// so an event is not dropped when the client disconnects after the commit.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, Channel(e.QuizID), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe calls handler for each event published for quizID until ctx is done.
func (p *RedisPublisher) Subscribe(ctx context.Context, quizID int64, handler func(Event)) error {
	pubsub := p.client.Subscribe(ctx, Channel(quizID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					p.logger.Warn("decode event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(e)
			}
		}
	}()
	return nil
}
