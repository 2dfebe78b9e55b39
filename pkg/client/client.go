// Package client speaks the order intake line protocol.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"orderhub/pkg/order"
	"orderhub/pkg/protocol"
)

// Client is a single protocol session. It is not safe for concurrent use.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn)}
}

// Submit sends the order and waits for its response code.
func (c *Client) Submit(ctx context.Context, o order.Order) (protocol.Code, error) {
	return c.SubmitLine(ctx, protocol.Format(o))
}

// SubmitLine sends a raw line and waits for its response code.
func (c *Client) SubmitLine(ctx context.Context, line string) (protocol.Code, error) {
	if err := c.WriteLine(ctx, line); err != nil {
		return 0, err
	}
	return c.ReadCode(ctx)
}

// WriteLine sends a raw line without waiting for a response.
func (c *Client) WriteLine(ctx context.Context, line string) error {
	c.deadline(ctx)
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ReadCode reads the next response line.
func (c *Client) ReadCode(ctx context.Context) (protocol.Code, error) {
	c.deadline(ctx)
	line, err := c.r.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	return protocol.ParseCode(line)
}

// Disconnect asks the server to end the session and closes the connection.
func (c *Client) Disconnect() error {
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, werr := c.conn.Write([]byte(protocol.DisconnectCommand + "\n"))
	cerr := c.conn.Close()
	if werr != nil {
		return fmt.Errorf("disconnect: %w", werr)
	}
	return cerr
}

// Close closes the connection without the disconnect command.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) deadline(ctx context.Context) {
	d, _ := ctx.Deadline()
	c.conn.SetDeadline(d)
}
