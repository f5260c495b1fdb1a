package protocol

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind is a number representing the kind of a command.
type Kind uint8

const (
	// KindEmpty is an empty request line. It is answered with "ERR empty".
	KindEmpty Kind = iota

	// KindPing is a liveness check. The reply is always "PONG", whatever the
	// state of the store and whatever came before on the connection.
	KindPing

	// KindEcho asks the server to reply with the text following the verb,
	// verbatim, internal whitespace included.
	KindEcho

	// KindSet stores a value for a key. The key is the text between the first
	// and the second space, the value is everything after the second space and
	// may contain spaces itself. The reply is "OK".
	KindSet

	// KindGet retrieves the value for a key, the text after the first space. The
	// reply is the value, or "NULL" if the key was never set.
	KindGet

	// KindUsage is a known verb missing a required argument. It is answered with
	// "ERR usage".
	KindUsage

	// KindUnknown is a verb the server does not recognize. It is answered with
	// "ERR unknown".
	KindUnknown
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "EMPTY"
	case KindPing:
		return "PING"
	case KindEcho:
		return "ECHO"
	case KindSet:
		return "SET"
	case KindGet:
		return "GET"
	case KindUsage:
		return "USAGE"
	case KindUnknown:
		return "UNKNOWN"
	default:
		return "unknown command kind"
	}
}

// Replies that do not depend on the store.
const (
	ReplyPong    = "PONG"
	ReplyOK      = "OK"
	ReplyNull    = "NULL"
	ReplyEmpty   = "ERR empty"
	ReplyUsage   = "ERR usage"
	ReplyUnknown = "ERR unknown"
)

// Command is a parsed request line.
type Command struct {
	kind Kind

	// The verb as sent, before case folding. Meaningful for KindUsage and
	// KindUnknown, and useful in logs.
	verb string

	// The key to get or set.
	key string

	// The value to set; doubles as the text to echo.
	value string
}

func repr(any string) string {
	const max = 11
	for i, r := range any {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			// Not printable.
			return repr(fmt.Sprintf("%x", any))
		}
		if i > max {
			// Printable, but too long.
			return any[:max-3] + "..."
		}
	}
	// Printable and short!
	return any
}

// String implements fmt.Stringer. Keys and values will be printed in hex form
// if they contain any non-printable character, and clipped if long.
func (c Command) String() string {
	return fmt.Sprintf("kind=%v verb=%s key=%s value=%s",
		c.kind, repr(c.verb), repr(c.key), repr(c.value))
}

// Kind returns the kind of a command, which decides how it is applied.
func (c Command) Kind() Kind {
	return c.kind
}

// Verb returns the verb as it appeared in the request line.
func (c Command) Verb() string {
	return c.verb
}

// Key returns the key of a command. Call only for KindGet and KindSet, else
// it'll panic.
func (c Command) Key() string {
	switch c.kind {
	case KindGet, KindSet:
		return c.key
	default:
		panic(c.accessorPanic("Key"))
	}
}

// Value returns the value to set, or the text to echo. Call only for KindSet
// and KindEcho, else it'll panic.
func (c Command) Value() string {
	switch c.kind {
	case KindSet, KindEcho:
		return c.value
	default:
		panic(c.accessorPanic("Value"))
	}
}

func (c Command) accessorPanic(accessorName string) string {
	return fmt.Sprintf("cannot call .%s for command of kind %v", accessorName, c.kind)
}

// Parse classifies a request line. The line must not contain the terminating
// newline nor the carriage return preceding it (see Splitter). The verb is the text
// up to the first space and is matched case-insensitively. Arguments are split
// on single spaces only, so that values keep their internal whitespace.
func Parse(line string) Command {
	if line == "" {
		return Command{kind: KindEmpty}
	}
	verb, rest, hasArgs := strings.Cut(line, " ")
	c := Command{verb: verb}
	switch strings.ToUpper(verb) {
	case "PING":
		c.kind = KindPing
	case "ECHO":
		if !hasArgs {
			c.kind = KindUsage
			break
		}
		c.kind = KindEcho
		c.value = rest
	case "SET":
		key, value, hasValue := strings.Cut(rest, " ")
		if !hasArgs || !hasValue {
			c.kind = KindUsage
			break
		}
		c.kind = KindSet
		c.key = key
		c.value = value
	case "GET":
		if !hasArgs {
			c.kind = KindUsage
			break
		}
		c.kind = KindGet
		c.key = rest
	default:
		c.kind = KindUnknown
	}
	return c
}

// NewPingCommand constructs a command of KindPing kind.
func NewPingCommand() Command {
	return Command{kind: KindPing, verb: "PING"}
}

// NewEchoCommand constructs a command of KindEcho kind.
func NewEchoCommand(text string) Command {
	return Command{kind: KindEcho, verb: "ECHO", value: text}
}

// NewSetCommand constructs a command of KindSet kind.
func NewSetCommand(key, value string) Command {
	return Command{kind: KindSet, verb: "SET", key: key, value: value}
}

// NewGetCommand constructs a command of KindGet kind.
func NewGetCommand(key string) Command {
	return Command{kind: KindGet, verb: "GET", key: key}
}

// Line renders the command as a request line, without the trailing newline.
// Parse(c.Line()) yields c back for the commands built by the constructors.
func (c Command) Line() string {
	switch c.kind {
	case KindPing:
		return c.verb
	case KindEcho:
		return c.verb + " " + c.value
	case KindSet:
		return c.verb + " " + c.key + " " + c.value
	case KindGet:
		return c.verb + " " + c.key
	default:
		return c.verb
	}
}
