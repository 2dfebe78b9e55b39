// Package server accepts order intake connections and runs one protocol
// session per connection against a shared registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"orderhub/pkg/logger"
	"orderhub/pkg/metrics"
	"orderhub/pkg/order"
	"orderhub/pkg/otel"
)

// DefaultAddr is the address the server listens on when Addr is empty.
const DefaultAddr = ":9999"

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server is the order intake listener.
type Server struct {
	Addr     string
	Registry order.Registry
	// Publisher, when set, receives every accepted order from a background
	// queue of PublishQueue events (default 256). Each publish is bounded
	// by PublishTimeout (default 5s).
	Publisher      order.Publisher
	PublishQueue   int
	PublishTimeout time.Duration

	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	// MaxConns caps concurrently served connections; 0 is unlimited.
	// Connections beyond the cap wait in the listen backlog.
	MaxConns int
	// IdleTimeout closes a connection that sends nothing for this long;
	// 0 disables it.
	IdleTimeout time.Duration

	queue    *publishQueue
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	stopping bool
	wg       sync.WaitGroup
}

// ListenAndServe binds Addr and serves until ctx is cancelled. A bind
// failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed
// by someone else. Failed accepts are logged and retried. Cancelling ctx
// closes ln and every open connection; Serve returns once all sessions
// have ended. It returns nil after cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.Registry == nil {
		return errors.New("server: nil registry")
	}
	log := s.logger()
	if s.Tracer != nil {
		ctx = otel.InjectTracing(ctx, s.Tracer)
	}

	s.mu.Lock()
	s.conns = make(map[net.Conn]struct{})
	s.stopping = false
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeConns()
	}()

	s.queue = nil
	if s.Publisher != nil {
		s.queue = newPublishQueue(s.Publisher, s.PublishQueue, s.PublishTimeout, log, s.Metrics)
	}

	var sem *semaphore.Weighted
	if s.MaxConns > 0 {
		sem = semaphore.NewWeighted(int64(s.MaxConns))
	}

	log.Info(ctx, "listening", "addr", ln.Addr().String(), "max_conns", s.MaxConns)

	var (
		serveErr error
		backoff  time.Duration
	)
	for {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			if sem != nil {
				sem.Release(1)
			}
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				serveErr = fmt.Errorf("accept: %w", err)
				break
			}
			s.Metrics.AcceptError()
			backoff = nextBackoff(backoff)
			log.Error(ctx, "accept failed", "error", err, "retry_in", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0

		if !s.track(conn) {
			conn.Close()
			if sem != nil {
				sem.Release(1)
			}
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			s.serveConn(ctx, conn)
		}()
	}

	cancel()
	s.wg.Wait()
	if s.queue != nil {
		s.queue.close()
	}
	log.Info(context.Background(), "listener stopped", "addr", ln.Addr().String())
	return serveErr
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}

func (s *Server) logger() *logger.Logger {
	if s.Logger == nil {
		return logger.Nop()
	}
	return s.Logger
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = true
	for conn := range s.conns {
		conn.Close()
	}
}
