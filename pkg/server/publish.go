package server

import (
	"context"
	"time"

	"orderhub/pkg/logger"
	"orderhub/pkg/metrics"
	"orderhub/pkg/order"
)

const (
	defaultPublishQueue   = 256
	defaultPublishTimeout = 5 * time.Second
)

// publishQueue hands accepted orders to the Publisher from its own
// goroutine so a slow sink never delays a response. When the queue is full
// new events are dropped.
type publishQueue struct {
	pub     order.Publisher
	events  chan order.Event
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
	done    chan struct{}
}

func newPublishQueue(pub order.Publisher, size int, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *publishQueue {
	if size <= 0 {
		size = defaultPublishQueue
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	q := &publishQueue{
		pub:     pub,
		events:  make(chan order.Event, size),
		timeout: timeout,
		log:     log,
		metrics: m,
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *publishQueue) run() {
	defer close(q.done)
	for e := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.pub.Publish(ctx, e)
		cancel()
		if err != nil {
			q.metrics.PublishError()
			q.log.Error(ctx, "publish order", "event", e.ID.String(), "business_id", e.Order.BusinessID, "error", err)
		}
	}
}

// enqueue never blocks.
func (q *publishQueue) enqueue(ctx context.Context, e order.Event) {
	select {
	case q.events <- e:
	default:
		q.metrics.PublishDropped()
		q.log.Warn(ctx, "publish queue full, dropping order event", "event", e.ID.String(), "business_id", e.Order.BusinessID)
	}
}

// close stops accepting events and waits until the queued ones are
// published or time out. No enqueue may follow.
func (q *publishQueue) close() {
	close(q.events)
	<-q.done
}
