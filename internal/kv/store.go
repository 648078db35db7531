// Package kv defines the keyed storage substrate the tracking ledger is
// layered on. The substrate itself knows nothing about transactions beyond
// the Update closure: atomicity of multi-key mutations is the caller's
// contract, implemented here as staged writes (memory) or a SQL transaction
// (Postgres).
package kv

import "context"

// Tx is the view of the store inside a View or Update closure.
type Tx interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Has(key string) (bool, error)
	Delete(key string) error
}

// Store is the durable keyed substrate.
//
// Update runs fn atomically: either every Set/Delete issued by fn commits,
// or, when fn returns an error, none of them are observable. View runs fn
// read-only; writes inside a View closure return an error.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}
