package protocol

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

var (
	// ErrUnderflow is returned when a writer makes no progress without
	// reporting an error.
	ErrUnderflow = errors.New("underflow")
)

// Encoder writes reply lines. It reuses one buffer across calls, so it must
// not be shared between goroutines.
type Encoder struct {
	buf []byte
}

// Encode writes the reply followed by a newline, in full. Writes interrupted
// by a signal are retried; any other error is returned and the connection
// should be considered dead.
func (e *Encoder) Encode(w io.Writer, reply string) error {
	e.buf = append(e.buf[:0], reply...)
	e.buf = append(e.buf, '\n')
	off := 0
	for off < len(e.buf) {
		n, err := w.Write(e.buf[off:])
		off += n
		if err != nil {
			if IsInterrupted(err) {
				continue
			}
			return err
		}
		if n == 0 {
			return fmt.Errorf("wrote %d of %d bytes: %w", off, len(e.buf), ErrUnderflow)
		}
	}
	return nil
}

// IsInterrupted tells whether an I/O error is a transient signal interruption
// which should be retried.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
