// SPDX-License-Identifier: MIT

// Package store persists the machine's integer counters. Writes are
// durable before the call returns; a crash can never lose an acknowledged
// update.
package store

import "fmt"

// Counter keys used by the machine controller.
const (
	KeyDeposit   = "deposit"
	KeyCashBox   = "cash_box"
	KeyItemsSold = "items_sold"
)

// Store is the integer get/set contract the control engine depends on.
type Store interface {
	// GetInt returns the stored value for key, or fallback if absent.
	GetInt(key string, fallback int64) (int64, error)
	// SetInt durably stores value under key.
	SetInt(key string, value int64) error
	Close() error
}

// Open creates a Store for the configured backend. The backend is always
// selected explicitly; there is no silent fallback.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "badger":
		return OpenBadger(dir)
	case "sqlite":
		return OpenSQLite(dir)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
