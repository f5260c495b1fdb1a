// The kvbench command measures the throughput of a kvserver: it opens many
// persistent connections, sends the same request on each over and over, and
// reports how many expected replies per second came back.
package main // import "github.com/nicolagi/dinokv/cmd/kvbench"

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nicolagi/dinokv/bench"
	"github.com/nicolagi/dinokv/protocol"
	log "github.com/sirupsen/logrus"
)

func main() {
	address := flag.String("address", "kv_server:5000", "server address")
	connections := flag.Int("connections", 64, "number of concurrent connections")
	requests := flag.Int("requests", 500, "number of requests per connection")
	request := flag.String("request", "PING", "request line to send")
	expect := flag.String("expect", "PONG", "reply counted as OK")
	rps := flag.Float64("rate", 0, "maximum requests per second across connections, 0 for unlimited")
	timeout := flag.Duration("timeout", 10*time.Second, "timeout for each request")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command := protocol.Parse(*request)
	switch command.Kind() {
	case protocol.KindEmpty, protocol.KindUsage, protocol.KindUnknown:
		log.WithFields(log.Fields{
			"request": *request,
			"kind":    command.Kind(),
		}).Fatal("Not a valid request")
	}

	result, err := bench.Run(ctx,
		bench.WithAddress(*address),
		bench.WithConnections(*connections),
		bench.WithRequests(*requests),
		bench.WithRequest(command, *expect),
		bench.WithRate(*rps),
		bench.WithTimeout(*timeout),
	)
	if err != nil {
		log.WithField("err", err).Fatal("Could not connect")
	}
	fmt.Println(result)
}
