// Package storage defines the durable key-value contract the credential store
// persists through. Implementations must survive process restarts, except
// memstore which exists for tests and ephemeral sessions.
package storage

import "context"

// Storage is an asynchronous string key-value store.
type Storage interface {
	// GetItem returns the value for key. ok is false when the key is absent;
	// absence is never an error.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// SetItem creates or replaces the value for key
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing an absent key succeeds.
	RemoveItem(ctx context.Context, key string) error
}
