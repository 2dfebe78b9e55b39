// Package redis publishes accepted orders on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"orderhub/pkg/order"
)

// Publisher sends each event as JSON to a channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

// New creates a publisher on the given channel.
func New(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Publish encodes and publishes the event.
func (p *Publisher) Publish(ctx context.Context, e order.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Watch subscribes to channel and calls fn with every event published on
// it until ctx ends or fn returns an error. Payloads that are not order
// events are skipped.
func Watch(ctx context.Context, client *redis.Client, channel string, fn func(order.Event) error) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive from %s: %w", channel, err)
		}
		e, err := decode(msg.Payload)
		if err != nil {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// decode parses a message payload produced by Publish.
func decode(payload string) (order.Event, error) {
	var e order.Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return order.Event{}, fmt.Errorf("decode order event: %w", err)
	}
	return e, nil
}
