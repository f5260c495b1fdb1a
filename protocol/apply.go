package protocol

import (
	"errors"

	"github.com/nicolagi/dinokv/storage"
)

// Apply executes a command against the store and returns the reply line,
// without the trailing newline. Every command produces exactly one reply.
func Apply(store storage.Store, c Command) string {
	switch c.Kind() {
	case KindEmpty:
		return ReplyEmpty
	case KindPing:
		return ReplyPong
	case KindEcho:
		return c.Value()
	case KindSet:
		if err := store.Put([]byte(c.Key()), []byte(c.Value())); err != nil {
			return "ERR " + err.Error()
		}
		return ReplyOK
	case KindGet:
		value, err := store.Get([]byte(c.Key()))
		if errors.Is(err, storage.ErrNotFound) {
			return ReplyNull
		}
		if err != nil {
			return "ERR " + err.Error()
		}
		return string(value)
	case KindUsage:
		return ReplyUsage
	default:
		return ReplyUnknown
	}
}
