package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TicketChange is one row-level update pushed on the change-notification
// stream. Fields carries only the columns that changed; consumers merge it
// field-by-field, never wholesale.
type TicketChange struct {
	TicketID string         `json:"ticket_id"`
	Fields   map[string]any `json:"fields"`
	At       time.Time      `json:"at"`
}

// ChangeStream is the push-based change-notification collaborator over the
// record store.
type ChangeStream interface {
	Publish(ctx context.Context, change TicketChange) error
	Subscribe(ctx context.Context, handler func(TicketChange)) error
}

const ticketChangeChannel = "tickets:changes"

type redisChangeStream struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisChangeStream builds a pub/sub backed change stream.
func NewRedisChangeStream(client *redis.Client, logger *zap.Logger) ChangeStream {
	return &redisChangeStream{client: client, logger: logger}
}

func (s *redisChangeStream) Publish(ctx context.Context, change TicketChange) error {
	if change.At.IsZero() {
		change.At = time.Now()
	}
	body, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, ticketChangeChannel, body).Err()
}

// Subscribe blocks consuming updates until ctx is cancelled.
func (s *redisChangeStream) Subscribe(ctx context.Context, handler func(TicketChange)) error {
	sub := s.client.Subscribe(ctx, ticketChangeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change TicketChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn("malformed ticket change", zap.Error(err))
				continue
			}
			handler(change)
		}
	}
}
