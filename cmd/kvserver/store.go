package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"github.com/nicolagi/dinokv/storage"
	log "github.com/sirupsen/logrus"
)

// newStore builds the store selected by the configuration. The cleanup
// function releases whatever the store holds on to.
func newStore(opts *options) (store storage.Store, cleanup func(), err error) {
	switch opts.Store.Type {
	case "memory":
		return storage.NewInMemoryStore(), func() {}, nil
	case "sharded":
		return storage.NewSharded(opts.Store.Shards), func() {}, nil
	case "bolt":
		file := os.ExpandEnv(opts.Store.Path)
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return nil, nil, fmt.Errorf("could not ensure directory for %q exists: %w", file, err)
		}
		db, err := bolt.Open(file, 0600, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open database %q: %w", file, err)
		}
		boltStore, err := storage.NewBoltStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("could not instantiate boltdb store at %q: %w", file, err)
		}
		return storage.NewSerialized(boltStore), func() {
			if err := db.Close(); err != nil {
				log.Warnf("Could not close boltdb database: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("%q: unknown store type", opts.Store.Type)
	}
}
