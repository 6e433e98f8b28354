// Package kvsync keeps small pieces of client state (profile settings, the
// auth flag, the unread badge) consistent between every consumer in the
// process and every other Work Hub process sharing the same store.
//
// A Backend is the persistent store. A Hub owns one backend, an in-process
// Bus and a unique origin id; Bindings are typed views of a single key.
// Writes go to the backend and are broadcast synchronously on the bus;
// changes committed by other processes arrive through Backend.Watch and
// are fanned out on the same bus.
package kvsync

import (
	"context"
	"errors"
)

// ErrClosed is returned by backends that have been closed.
var ErrClosed = errors.New("kvsync: backend closed")

// StorageEvent describes a change committed to a backend. Value is nil
// when the key was removed.
type StorageEvent struct {
	Key    string
	Value  *string
	Origin string
}

// Backend is a string key/value store with atomic single-key reads and
// writes and a change feed visible to other processes.
type Backend interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key on behalf of origin.
	SetItem(ctx context.Context, key, value, origin string) error

	// RemoveItem deletes key on behalf of origin.
	RemoveItem(ctx context.Context, key, origin string) error

	// Watch delivers every committed change, including the caller's own,
	// until the returned cancel func is called or ctx ends. The
	// subscription is active when Watch returns.
	Watch(ctx context.Context, fn func(StorageEvent)) (cancel func(), err error)

	// Close releases the underlying resources.
	Close() error
}

func strPtr(s string) *string { return &s }
