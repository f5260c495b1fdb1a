// Package bench generates load against a key-value server: many concurrent
// persistent connections, each sending the same request over and over and
// waiting for the reply before sending the next one.
package bench

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicolagi/dinokv/client"
	"github.com/nicolagi/dinokv/protocol"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type options struct {
	address     string
	connections int
	requests    int
	request     protocol.Command
	expect      string
	rate        float64
	timeout     time.Duration
}

type Option func(*options)

func WithAddress(value string) Option {
	return func(o *options) {
		o.address = value
	}
}

// WithConnections sets the number of concurrent connections.
func WithConnections(value int) Option {
	return func(o *options) {
		o.connections = value
	}
}

// WithRequests sets the number of requests sent on each connection.
func WithRequests(value int) Option {
	return func(o *options) {
		o.requests = value
	}
}

// WithRequest sets the request and the reply expected for it.
func WithRequest(request protocol.Command, expect string) Option {
	return func(o *options) {
		o.request = request
		o.expect = expect
	}
}

// WithRate caps the aggregate number of requests per second across all
// connections. Zero, the default, means as fast as the server replies.
func WithRate(value float64) Option {
	return func(o *options) {
		o.rate = value
	}
}

// WithTimeout bounds each request and reply exchange.
func WithTimeout(value time.Duration) Option {
	return func(o *options) {
		o.timeout = value
	}
}

// Result summarizes a run.
type Result struct {
	// Replies equal to the expected one.
	OK int64

	// Requests that were meant to be sent.
	Total int64

	Elapsed time.Duration
}

// Throughput returns the expected replies received per second.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.OK) / r.Elapsed.Seconds()
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("OK replies: %d/%d  |  time: %g s  |  approx throughput: %g req/s",
		r.OK, r.Total, r.Elapsed.Seconds(), r.Throughput())
}

// Run opens the connections, lets each send its requests, and returns once
// all connections are done. A connection stops early on the first I/O error,
// or when ctx is done. The returned error reports the first failure to
// connect; the result is meaningful regardless.
func Run(ctx context.Context, opts ...Option) (Result, error) {
	o := options{
		address:     "kv_server:5000",
		connections: 64,
		requests:    500,
		request:     protocol.NewPingCommand(),
		expect:      protocol.ReplyPong,
	}
	for _, opt := range opts {
		opt(&o)
	}
	line := o.request.Line()
	var limiter *rate.Limiter
	if o.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.rate), 1)
	}

	var (
		ok       int64
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	start := time.Now()
	for i := 0; i < o.connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger := log.WithFields(log.Fields{
				"conn":    i,
				"address": o.address,
			})
			c, err := client.New(client.WithAddress(o.address), client.WithTimeout(o.timeout))
			if err != nil {
				logger.WithField("err", err).Warn("Could not connect")
				errOnce.Do(func() {
					firstErr = fmt.Errorf("connection %d: %w", i, err)
				})
				return
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.WithField("err", err).Warn("Could not close connection")
				}
			}()
			for j := 0; j < o.requests; j++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						logger.WithField("err", err).Debug("Stopped waiting")
						return
					}
				} else if ctx.Err() != nil {
					return
				}
				reply, err := c.Do(line)
				if err != nil {
					logger.WithFields(log.Fields{
						"err":     err,
						"request": j,
					}).Warn("Giving up on connection")
					return
				}
				if reply == o.expect {
					atomic.AddInt64(&ok, 1)
				}
			}
		}(i)
	}
	wg.Wait()
	return Result{
		OK:      atomic.LoadInt64(&ok),
		Total:   int64(o.connections) * int64(o.requests),
		Elapsed: time.Since(start),
	}, firstErr
}
