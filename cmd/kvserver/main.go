package main

import (
	"flag"
	"fmt"
	golog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/nicolagi/dinokv/server"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	optsFile := flag.String("config", os.ExpandEnv("$HOME/lib/dinokv/kvserver.config"), "location of configuration file")
	flag.Parse()

	opts, err := loadOptions(*optsFile)
	if err != nil {
		log.Fatalf("Loading configuration from %q: %v", *optsFile, err)
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cleanup := redirectLogging(opts)
	defer cleanup()

	if err := agent.Listen(agent.Options{}); err != nil {
		log.WithField("err", err).Warn("Could not start gops agent")
	} else {
		defer agent.Close()
	}

	store, closeStore, err := newStore(opts)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	srv := server.New(
		server.WithAddress(opts.Address),
		server.WithStore(store),
		server.WithWorkers(opts.Workers),
		server.WithQueueCapacity(opts.QueueCapacity),
	)
	addr, err := srv.Listen()
	if err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{
		"addr":    addr,
		"workers": opts.Workers,
		"store":   opts.Store.Type,
	}).Info("Listening")

	// Before we call srv.Serve(), which never returns unless srv.Shutdown() is
	// called, we need to install a signal handler to call srv.Shutdown().
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		log.WithField("signal", sig).Info("Shutting down server")
		// Will make srv.Serve() return once the accepted connections are served,
		// and allow deferred clean-up functions to execute.
		if err := srv.Shutdown(); err != nil {
			log.WithFields(log.Fields{"err": err}).Warn("Could not shut down the server cleanly")
		}
	}()

	if err := srv.Serve(); err != nil {
		log.Error(err)
	}
}

// redirectLogging sends the standard library logger through logrus and, if a
// log path is configured, logrus to a size-rotated file.
func redirectLogging(opts *options) (cleanup func()) {
	golog.SetOutput(log.StandardLogger().Writer())
	if opts.LogPath == "" {
		return func() {}
	}
	pathname := os.ExpandEnv(opts.LogPath)
	log.WithField("pathname", pathname).Info("Lines after this one will be logged to a file")
	rotating := &lumberjack.Logger{
		Filename:   pathname,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	log.SetOutput(rotating)
	return func() {
		if err := rotating.Close(); err != nil {
			// Can't use the logger here!
			_, _ = fmt.Fprintf(os.Stderr, "Could not close log file cleanly %q: %v", pathname, err)
		}
	}
}
