// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	"fmt"
)

// StoreType defines the type of event storage backend.
type StoreType string

const (
	// StoreMemory uses in-memory storage (default, not persistent).
	StoreMemory StoreType = "memory"

	// StoreBadger uses BadgerDB for persistent key-value storage.
	StoreBadger StoreType = "badger"

	// StoreDuckDB uses DuckDB for persistent analytical storage.
	StoreDuckDB StoreType = "duckdb"
)

// NewStore creates an event store for the configured backend. The path
// is ignored for the memory backend.
func NewStore(ctx context.Context, storeType StoreType, path string) (Store, error) {
	switch storeType {
	case StoreMemory, "":
		return NewMemoryStore(0), nil
	case StoreBadger:
		return NewBadgerStore(path)
	case StoreDuckDB:
		return NewDuckDBStore(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store type: %q", storeType)
	}
}
