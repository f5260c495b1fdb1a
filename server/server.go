package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicolagi/dinokv/queue"
	"github.com/nicolagi/dinokv/storage"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAddress = ":5000"
	DefaultWorkers = 32
)

var (
	ErrNotListening = errors.New("not listening")
)

type Option func(*options)

type options struct {
	address       string
	store         storage.Store
	workers       int
	queueCapacity int
}

func WithAddress(value string) Option {
	return func(o *options) {
		o.address = value
	}
}

func WithStore(value storage.Store) Option {
	return func(o *options) {
		o.store = value
	}
}

// WithWorkers sets the number of connections served concurrently. Further
// connections wait in the queue until a worker is done with its current one.
func WithWorkers(value int) Option {
	return func(o *options) {
		o.workers = value
	}
}

// WithQueueCapacity bounds the number of accepted connections waiting for a
// worker. When the queue is full, the accept loop stops accepting until a
// worker frees a slot. Zero, the default, means unbounded.
func WithQueueCapacity(value int) Option {
	return func(o *options) {
		o.queueCapacity = value
	}
}

type Server struct {
	opts    options
	ln      net.Listener
	pending *queue.Queue[*serverConn]
	workers sync.WaitGroup
	connID  uint64
}

func New(opts ...Option) *Server {
	s := &Server{}
	s.opts.address = DefaultAddress
	s.opts.workers = DefaultWorkers
	for _, o := range opts {
		o(&s.opts)
	}
	if s.opts.store == nil {
		s.opts.store = storage.NewInMemoryStore()
	}
	if s.opts.workers < 1 {
		s.opts.workers = 1
	}
	s.pending = queue.New[*serverConn](s.opts.queueCapacity)
	return s
}

// Listen binds the configured address, IPv4 only. Failure here is meant to be fatal for
// the process, there is no retry.
func (s *Server) Listen() (addr string, err error) {
	lc := net.ListenConfig{Control: reuseAddr}
	s.ln, err = lc.Listen(context.Background(), "tcp4", s.opts.address)
	if err != nil {
		return
	}
	addr = s.ln.Addr().String()
	return
}

// Serve starts the workers and accepts connections, handing each to the
// queue. The function will return (some time after) shutdown is called, once
// all connections accepted before then have been served to completion.
func (s *Server) Serve() error {
	if s.ln == nil {
		return ErrNotListening
	}
	for i := 0; i < s.opts.workers; i++ {
		s.workers.Add(1)
		go s.work(i)
	}
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// shutdown must've been called. Interrupt the accept loop.
				break
			}
			log.WithField("err", err).Error("Could not accept")
			// Typically out of file descriptors, give workers a chance to
			// release some.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		sc := s.wrapConn(conn)
		sc.logger.Info("Client attached")
		if err := s.pending.Enqueue(sc); err != nil {
			sc.logger.WithField("err", err).Info("Refusing client, shutting down")
			sc.close()
			break
		}
	}
	// Let the workers drain the queue and exit.
	s.pending.Close()
	s.workers.Wait()
	return nil
}

func (s *Server) work(id int) {
	defer s.workers.Done()
	logger := log.WithField("worker", id)
	for {
		sc, ok := s.pending.Dequeue()
		if !ok {
			logger.Debug("No more work")
			return
		}
		logger.WithField("id", sc.id).Debug("Serving client")
		sc.serve()
	}
}

// Pending returns the number of accepted connections waiting for a worker.
func (s *Server) Pending() int {
	return s.pending.Len()
}

func (s *Server) nextConnID() uint64 {
	return atomic.AddUint64(&s.connID, 1)
}

// Shutdown instructs the server to shutdown. This method will return
// immediately, while the server will have to be considered shut down only when
// Serve returns. Connections already accepted are not interrupted: queued ones
// will still be served, and served ones run until the client disconnects.
func (s *Server) Shutdown() error {
	if s.ln == nil {
		return ErrNotListening
	}
	// Stop accepting
	err := s.ln.Close()
	// Stop waiting for more work once the accepted connections are served.
	s.pending.Close()
	return err
}
