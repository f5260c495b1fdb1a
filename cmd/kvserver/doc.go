// The kvserver command serves an in-memory key-value store over TCP. Clients
// send newline-terminated request lines and receive one reply line per
// request, in order:
//
//	PING              -> PONG
//	ECHO <text>       -> <text>
//	SET <key> <value> -> OK
//	GET <key>         -> <value>, or NULL
//
// Malformed requests get "ERR empty", "ERR usage" or "ERR unknown" and the
// connection stays open. A fixed pool of workers serves connections, one
// at a time each; extra connections wait in a queue. On SIGINT or SIGTERM the
// server stops accepting, serves the connections it already accepted, and
// exits once they are all closed by their clients. (The functionality is
// mostly in this module's server package.)
package main // import "github.com/nicolagi/dinokv/cmd/kvserver"
