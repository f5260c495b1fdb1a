package protocol

import (
	"bytes"
)

// Splitter accumulates bytes read from a connection and hands out complete
// lines. Requests may arrive split across reads or many per read; lines come
// out in the order their newlines arrived.
type Splitter struct {
	buf []byte
	off int

	// Number of bytes past off already searched for a newline, so that a long
	// line arriving in many reads is scanned once.
	scanned int
}

// Feed appends freshly read bytes to the accumulation buffer.
func (s *Splitter) Feed(b []byte) {
	if s.off > 0 && s.off == len(s.buf) {
		// Everything consumed, reuse the buffer from the start.
		s.buf = s.buf[:0]
		s.off = 0
		s.scanned = 0
	} else if s.off > cap(s.buf)/2 {
		// scanned is relative to off, so it survives the move.
		n := copy(s.buf, s.buf[s.off:])
		s.buf = s.buf[:n]
		s.off = 0
	}
	s.buf = append(s.buf, b...)
}

// Next returns the next complete line, without its newline and without one
// trailing carriage return. It returns false if no complete line is buffered.
func (s *Splitter) Next() (line string, ok bool) {
	from := s.off + s.scanned
	i := bytes.IndexByte(s.buf[from:], '\n')
	if i < 0 {
		s.scanned = len(s.buf) - s.off
		return "", false
	}
	end := from + i
	b := s.buf[s.off:end]
	s.off = end + 1
	s.scanned = 0
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return string(b), true
}

// Buffered returns the number of bytes of incomplete lines held.
func (s *Splitter) Buffered() int {
	return len(s.buf) - s.off
}
