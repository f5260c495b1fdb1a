package main

import (
	"errors"
	"os"

	"github.com/nicolagi/dinokv/server"
	"github.com/rogpeppe/rjson"
)

type options struct {
	Address       string `json:"address"`
	Workers       int    `json:"workers"`
	QueueCapacity int    `json:"queue_capacity"`
	Debug         bool   `json:"debug"`
	LogPath       string `json:"log_path"`

	Store struct {
		// One of "memory", "sharded" or "bolt".
		Type string `json:"type"`

		// Properties for "sharded" type.
		Shards int `json:"shards"`

		// Properties for "bolt" type.
		Path string `json:"path"`
	} `json:"store"`
}

// loadOptions reads the configuration file. A missing file is not an error,
// all properties then take their defaults.
func loadOptions(pathname string) (*options, error) {
	opts := new(options)
	f, err := os.Open(pathname)
	if errors.Is(err, os.ErrNotExist) {
		opts.applyDefaultsForMissingProperties()
		return opts, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := rjson.NewDecoder(f).Decode(opts); err != nil {
		return nil, err
	}
	opts.applyDefaultsForMissingProperties()
	return opts, nil
}

func (o *options) applyDefaultsForMissingProperties() {
	if o.Address == "" {
		o.Address = server.DefaultAddress
	}
	if o.Workers <= 0 {
		o.Workers = server.DefaultWorkers
	}
	if o.Store.Type == "" {
		o.Store.Type = "memory"
	}
	if o.Store.Shards <= 0 {
		o.Store.Shards = 16
	}
	if o.Store.Path == "" {
		o.Store.Path = "$HOME/lib/dinokv/storage.db"
	}
}
