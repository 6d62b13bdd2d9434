package ws

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"onetalk/internal/realtime"
)

// RedisBroker shares session rooms between API instances over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(ctx context.Context, addr, password string) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: 0})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisBroker{client: client}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, sessionID string, frame []byte) error {
	return b.client.Publish(ctx, realtime.Topic(sessionID), frame).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(sessionID string, frame []byte)) error {
	sub := b.client.PSubscribe(ctx, realtime.TopicPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return redis.ErrClosed
			}
			deliver(strings.TrimPrefix(msg.Channel, realtime.TopicPrefix), []byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) Close() error { return b.client.Close() }
