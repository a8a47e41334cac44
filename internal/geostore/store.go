// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package geostore persists resolved IP coordinates in BadgerDB so a
// restarted process starts with a warm geolocation cache. Only successful
// lookups are ever written; fallback coordinates never are.
package geostore

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/threatfeed/internal/models"
)

const keyPrefix = "geo:"

// ErrNotFound is returned by Get for addresses never stored or expired.
var ErrNotFound = errors.New("coordinate not found")

// Store is a BadgerDB-backed ip -> Coordinate map.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (creating if needed) a store at path. Entries older than ttl
// are dropped by Badger; a ttl of 0 keeps them forever.
func Open(path string, ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return open(opts, ttl)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, ttl)
}

func open(opts badger.Options, ttl time.Duration) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for coordinates: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Save writes the coordinate for ip, replacing any previous value.
func (s *Store) Save(ip string, c models.Coordinate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal coordinate: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+ip), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("set coordinate: %w", err)
		}
		return nil
	})
}

// Get reads the coordinate for ip.
func (s *Store) Get(ip string) (models.Coordinate, error) {
	var c models.Coordinate
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + ip))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get coordinate: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})
	return c, err
}

// LoadAll returns up to limit stored coordinates. A limit of 0 returns all.
// Entries that fail to decode are skipped.
func (s *Store) LoadAll(limit int) (map[string]models.Coordinate, error) {
	out := make(map[string]models.Coordinate)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			item := it.Item()
			ip := string(item.Key()[len(keyPrefix):])
			var c models.Coordinate
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				continue
			}
			out[ip] = c
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate coordinates: %w", err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
