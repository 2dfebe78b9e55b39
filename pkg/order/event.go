package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event describes an order the registry accepted. Created is set when the
// order registered a new business client.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Order   Order     `json:"order"`
	Created bool      `json:"created"`
	Session string    `json:"session,omitempty"`
	At      time.Time `json:"at"`
}

// NewEvent stamps an accepted order with a fresh id and the current time.
func NewEvent(o Order, created bool, session string) Event {
	return Event{ID: uuid.New(), Order: o, Created: created, Session: session, At: time.Now().UTC()}
}

// Publisher forwards accepted orders to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

// Publish calls f(ctx, e).
func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

type multiPublisher []Publisher

// Publishers returns a Publisher that hands every event to each of ps in
// turn. Errors from individual publishers are joined; a failing publisher
// does not stop the others. Nil publishers are skipped.
func Publishers(ps ...Publisher) Publisher {
	var out multiPublisher
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
