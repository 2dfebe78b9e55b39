package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"orderhub/pkg/logger"
	"orderhub/pkg/order"
	"orderhub/pkg/otel"
	"orderhub/pkg/protocol"
)

// maxLineSize bounds a single protocol line.
const maxLineSize = 1 << 20

// State is a stage of a connection session.
type State int

// Session states. The last three are terminal.
const (
	StateReading State = iota
	StateProcessing
	StateClosedByPeer
	StateClosedOnDisconnect
	StateClosedOnError
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateProcessing:
		return "processing"
	case StateClosedByPeer:
		return "closed_by_peer"
	case StateClosedOnDisconnect:
		return "closed_on_disconnect"
	case StateClosedOnError:
		return "closed_on_error"
	}
	return "unknown"
}

type session struct {
	id    string
	srv   *Server
	conn  net.Conn
	log   *logger.Logger
	state State
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	s.Metrics.ConnOpened()
	defer s.Metrics.ConnClosed()

	sess := &session{
		id:   uuid.NewString(),
		srv:  s,
		conn: conn,
	}
	sess.log = s.logger().With("session", sess.id, "remote", conn.RemoteAddr().String())
	sess.log.Info(ctx, "client connected")

	start := time.Now()
	sess.run(ctx)
	sess.log.Info(ctx, "client disconnected", "state", sess.state.String(), "duration", time.Since(start).String())
}

// run reads lines until the session reaches a terminal state.
func (c *session) run(ctx context.Context) {
	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	w := bufio.NewWriter(c.conn)

	for {
		c.state = StateReading
		if c.srv.IdleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.srv.IdleTimeout))
		}
		if !sc.Scan() {
			c.readFailed(ctx, sc.Err())
			return
		}

		line := sc.Text()
		if protocol.IsDisconnect(line) {
			c.state = StateClosedOnDisconnect
			return
		}

		c.state = StateProcessing
		code := c.handle(ctx, line)
		if _, err := w.WriteString(code.String() + "\n"); err != nil {
			c.writeFailed(ctx, err)
			return
		}
		if err := w.Flush(); err != nil {
			c.writeFailed(ctx, err)
			return
		}
		c.srv.Metrics.Response(code.String())
	}
}

// handle validates one order line, applies it and returns the response
// code. It never fails the session.
func (c *session) handle(ctx context.Context, line string) protocol.Code {
	ctx, span := otel.AddSpan(ctx, "order.submit", attribute.String("session", c.id))
	defer span.End()

	var created bool
	o, err := protocol.Parse(line)
	if err == nil {
		span.SetAttributes(attribute.Int("business_id", o.BusinessID), attribute.Int("item", int(o.Item)))
		created, err = c.srv.Registry.Submit(ctx, o)
	}
	code := protocol.CodeFor(err)
	span.SetAttributes(attribute.Int("response_code", int(code)))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.log.Debug(ctx, "order rejected", "code", int(code), "error", err)
		return code
	}

	if !o.Item.Known() {
		c.log.Warn(ctx, "order accepted for unknown item type", "business_id", o.BusinessID, "item", int(o.Item))
	} else {
		c.log.Info(ctx, "order accepted", "business_id", o.BusinessID, "item", o.Item.String(), "quantity", o.Quantity, "created", created)
	}
	if n, err := c.srv.Registry.Len(ctx); err == nil {
		c.srv.Metrics.RegistrySize(n)
	}
	if q := c.srv.queue; q != nil {
		q.enqueue(ctx, order.NewEvent(o, created, c.id))
	}
	return code
}

func (c *session) readFailed(ctx context.Context, err error) {
	if err == nil {
		c.state = StateClosedByPeer
		return
	}
	c.state = StateClosedOnError
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.log.Info(ctx, "closing idle connection", "idle_timeout", c.srv.IdleTimeout.String())
	case errors.Is(err, net.ErrClosed) && ctx.Err() != nil:
		// Closed by shutdown.
	default:
		c.log.Warn(ctx, "read failed", "error", err)
	}
}

func (c *session) writeFailed(ctx context.Context, err error) {
	c.state = StateClosedOnError
	c.log.Warn(ctx, "write failed", "error", err)
}
