package server

import (
	"errors"
	"io"
	"net"

	"github.com/nicolagi/dinokv/protocol"
	log "github.com/sirupsen/logrus"
)

const readBufferSize = 4096

type serverConn struct {
	id     uint64
	server *Server
	logger *log.Entry

	conn     net.Conn
	splitter protocol.Splitter
	encoder  protocol.Encoder
}

func (s *Server) wrapConn(conn net.Conn) *serverConn {
	id := s.nextConnID()
	return &serverConn{
		id:     id,
		server: s,
		conn:   conn,
		logger: log.WithFields(log.Fields{
			"id":     id,
			"remote": conn.RemoteAddr(),
			"local":  conn.LocalAddr(),
		}),
	}
}

// Run by a worker, returns when the client disconnects or on an I/O error
// other than an interrupted system call. The connection is closed on return.
func (sc *serverConn) serve() {
	defer sc.close()
	if err := disableNagle(sc.conn); err != nil {
		sc.logger.WithField("err", err).Warn("Could not disable Nagle's algorithm")
	}
	buf := make([]byte, readBufferSize)
	for {
		n, err := sc.conn.Read(buf)
		if n > 0 {
			sc.splitter.Feed(buf[:n])
			if werr := sc.dispatch(); werr != nil {
				sc.logger.WithField("err", werr).Warn("Could not write reply")
				return
			}
		}
		if err == nil {
			continue
		}
		if protocol.IsInterrupted(err) {
			continue
		}
		// The following happens when the connection is closed on the client side.
		if err == io.EOF || errors.Is(err, net.ErrClosed) {
			if n := sc.splitter.Buffered(); n > 0 {
				sc.logger.WithField("bytes", n).Debug("Discarding incomplete request")
			}
			sc.logger.Info("Client detached")
		} else {
			sc.logger.WithField("err", err).Warn("Could not read request")
		}
		return
	}
}

// dispatch replies to every complete line buffered, in order.
func (sc *serverConn) dispatch() error {
	for {
		line, ok := sc.splitter.Next()
		if !ok {
			return nil
		}
		command := protocol.Parse(line)
		reply := protocol.Apply(sc.server.opts.store, command)
		if log.IsLevelEnabled(log.DebugLevel) {
			if command.Kind() == protocol.KindUnknown {
				sc.logger.WithField("verb", command.Verb()).Debug("Unknown verb")
			} else {
				sc.logger.WithFields(log.Fields{
					"command": command,
					"reply":   reply,
				}).Debug("Applied")
			}
		}
		if err := sc.encoder.Encode(sc.conn, reply); err != nil {
			return err
		}
	}
}

// Replies are small, don't let Nagle's algorithm hold them back.
func disableNagle(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tcpConn.SetNoDelay(true)
}

func (sc *serverConn) close() {
	if err := sc.conn.Close(); err != nil {
		sc.logger.WithFields(log.Fields{
			"err": err,
		}).Warn("Could not close connection")
	}
}
