package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"orderhub/pkg/order"
)

func TestDecode(t *testing.T) {
	if _, err := decode("not json"); err == nil {
		t.Fatal("expected decode error")
	}
	e, err := decode(`{"order":{"name":"Acme","business_id":12345,"item":2,"quantity":4},"created":true}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Order.Item != order.Belts || e.Order.Quantity != 4 || !e.Created {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func liveClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("ORDERHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ORDERHUB_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

// Set ORDERHUB_TEST_REDIS_ADDR to run against a live server.
func TestPublisher(t *testing.T) {
	client := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "orderhub:test")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := order.NewEvent(order.Order{Name: "Acme", BusinessID: 12345, Item: order.Sunglasses, Quantity: 5}, true, "s1")
	if err := New(client, "orderhub:test").Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	got, err := decode(msg.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != want.ID || got.Order != want.Order || !got.Created {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestWatch(t *testing.T) {
	client := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const channel = "orderhub:test:watch"
	want := order.NewEvent(order.Order{Name: "Acme", BusinessID: 12345, Item: order.Scarves, Quantity: 2}, false, "s2")
	stop := errors.New("stop")

	done := make(chan error, 1)
	var got order.Event
	go func() {
		done <- Watch(ctx, client, channel, func(e order.Event) error {
			got = e
			return stop
		})
	}()

	// Publish until the subscription is live; the junk payload must be skipped.
	pub := New(client, channel)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-done:
			if !errors.Is(err, stop) {
				t.Fatalf("watch: %v", err)
			}
			if got.ID != want.ID || got.Order != want.Order || got.Created {
				t.Fatalf("expected %+v, got %+v", want, got)
			}
			return
		case <-tick.C:
			if err := client.Publish(ctx, channel, "junk").Err(); err != nil {
				t.Fatalf("publish junk: %v", err)
			}
			if err := pub.Publish(ctx, want); err != nil {
				t.Fatalf("publish: %v", err)
			}
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}
