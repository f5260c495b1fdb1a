package client

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nicolagi/dinokv/protocol"
)

var (
	ErrDetached = errors.New("client is detached")
	ErrTimeout  = errors.New("timeout")
)

type options struct {
	address string
	timeout time.Duration
}

type Option func(*options)

func WithAddress(value string) Option {
	return func(o *options) {
		o.address = value
	}
}

// WithTimeout sets a deadline for each Send and Receive. Zero, the default,
// means calls block for as long as it takes.
func WithTimeout(value time.Duration) Option {
	return func(o *options) {
		o.timeout = value
	}
}

// Client is a line client for the key-value server. It sends request lines
// and receives reply lines over one persistent connection. Requests may be
// pipelined: replies come back in request order.
type Client struct {
	opts options

	emu     sync.Mutex
	encoder protocol.Encoder

	dmu    sync.Mutex
	reader *bufio.Reader

	cmu  sync.Mutex
	conn net.Conn
}

func New(opts ...Option) (*Client, error) {
	var c Client
	c.opts.address = "127.0.0.1:5000"
	for _, o := range opts {
		o(&c.opts)
	}
	conn, err := net.Dial("tcp", c.opts.address)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return &c, nil
}

// Close closes the connection. The client is detached afterwards, even if
// this method returns an error.
func (c *Client) Close() error {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send sends a request line, which must not contain newlines.
func (c *Client) Send(line string) error {
	return c.do(func(conn net.Conn) error {
		c.emu.Lock()
		defer c.emu.Unlock()
		return c.encoder.Encode(conn, line)
	})
}

// Receive receives the next reply line, without its newline.
func (c *Client) Receive() (reply string, err error) {
	err = c.do(func(conn net.Conn) error {
		c.dmu.Lock()
		defer c.dmu.Unlock()
		reply, err = c.reader.ReadString('\n')
		reply = strings.TrimSuffix(reply, "\n")
		return err
	})
	return
}

// Do sends a request line and waits for its reply. Not meant to be mixed with
// concurrent Send/Receive calls on the same client.
func (c *Client) Do(line string) (reply string, err error) {
	if err := c.Send(line); err != nil {
		return "", err
	}
	return c.Receive()
}

func (c *Client) do(fn func(net.Conn) error) error {
	c.cmu.Lock()
	conn := c.conn
	c.cmu.Unlock()
	if conn == nil {
		return ErrDetached
	}
	if c.opts.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.opts.timeout)); err != nil {
			return err
		}
	}
	err := fn(conn)
	var operr *net.OpError
	if errors.As(err, &operr) && operr.Timeout() {
		return ErrTimeout
	}
	return err
}
