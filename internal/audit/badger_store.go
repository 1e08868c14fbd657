// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage
const (
	eventKeyPrefix     = "event:"
	eventUserKeyPrefix = "event_user:"
	summaryKeyPrefix   = "summary:"
)

// BadgerStore implements Store using BadgerDB for durable storage.
// This is suitable for production use with persistence across restarts
// when an analytical backend is not needed.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB at the given path and returns a store
// backed by it. The store owns the database handle.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreWithDB wraps an existing database handle. The caller
// retains ownership; Close still closes the handle.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// eventKey builds a time-ordered key so range scans walk events in
// timestamp order.
func eventKey(event *Event) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", eventKeyPrefix, event.Timestamp.UnixNano(), event.ID))
}

func userIndexKey(event *Event) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", eventUserKeyPrefix, event.UserID, event.Timestamp.UnixNano(), event.ID))
}

// InsertEvents persists a batch of events in a single transaction.
func (s *BadgerStore) InsertEvents(ctx context.Context, events []Event) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for i := range events {
			event := &events[i]

			data, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}

			if err := txn.Set(eventKey(event), data); err != nil {
				return fmt.Errorf("set event: %w", err)
			}

			// Per-user index for efficient recent-event lookups
			if event.UserID != "" {
				if err := txn.Set(userIndexKey(event), eventKey(event)); err != nil {
					return fmt.Errorf("set user index: %w", err)
				}
			}
		}
		return nil
	})
}

// CountsByType aggregates matching events by type and severity.
func (s *BadgerStore) CountsByType(ctx context.Context, filter Filter) ([]TypeCount, error) {
	type key struct {
		t   EventType
		sev Severity
	}
	counts := make(map[key]int64)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var event Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}

			if matchesFilter(&event, &filter) {
				counts[key{event.Type, event.Severity}]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]TypeCount, 0, len(counts))
	for k, n := range counts {
		results = append(results, TypeCount{Type: k.t, Severity: k.sev, Count: n})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Type != results[j].Type {
			return results[i].Type < results[j].Type
		}
		return results[i].Severity < results[j].Severity
	})

	return results, nil
}

// RecentEvents returns the most recent events for a user, newest first.
// An empty userID walks all events.
func (s *BadgerStore) RecentEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	var results []Event

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		if userID != "" {
			prefix = []byte(eventUserKeyPrefix + userID + ":")
		}

		// Reverse iteration starts past the end of the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()

			var event Event
			if userID != "" {
				// User index values reference the primary event key.
				var refKey []byte
				if err := item.Value(func(val []byte) error {
					refKey = append([]byte{}, val...)
					return nil
				}); err != nil {
					return err
				}

				eventItem, err := txn.Get(refKey)
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue // Event removed by retention
				}
				if err != nil {
					return fmt.Errorf("get event: %w", err)
				}
				if err := eventItem.Value(func(val []byte) error {
					return json.Unmarshal(val, &event)
				}); err != nil {
					return fmt.Errorf("unmarshal event: %w", err)
				}
			} else {
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &event)
				}); err != nil {
					return fmt.Errorf("unmarshal event: %w", err)
				}
			}

			results = append(results, event)
			if limit > 0 && len(results) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// DeleteBefore removes events older than the cutoff and returns how many
// were removed. Time-ordered keys let the scan stop at the cutoff.
func (s *BadgerStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	stop := []byte(fmt.Sprintf("%s%020d", eventKeyPrefix, cutoff.UnixNano()))

	var eventKeys [][]byte
	var indexKeys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if string(item.Key()) >= string(stop) {
				break
			}

			var event Event
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}

			eventKeys = append(eventKeys, item.KeyCopy(nil))
			if event.UserID != "" {
				indexKeys = append(indexKeys, userIndexKey(&event))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(eventKeys) == 0 {
		return 0, nil
	}

	// Delete in chunks to stay under the transaction size limit.
	const chunkSize = 1000
	keys := append(eventKeys, indexKeys...)
	for start := 0; start < len(keys); start += chunkSize {
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys[start:end] {
				if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("delete event: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	return int64(len(eventKeys)), nil
}

// UpsertSummary stores the latest per-session aggregate snapshot.
func (s *BadgerStore) UpsertSummary(ctx context.Context, sessionID string, counts []TypeCount) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(summaryKeyPrefix+sessionID), data)
	})
}

// Summary returns the stored snapshot for a session, if any.
func (s *BadgerStore) Summary(sessionID string) ([]TypeCount, bool) {
	var counts []TypeCount
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(summaryKeyPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &counts)
		})
	})
	if err != nil {
		return nil, false
	}

	return counts, found
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
