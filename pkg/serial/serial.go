// Package serial runs work for one key at a time. Services use the table id
// as key so that every mutation of a table's lifecycle is ordered.
package serial

import (
	"context"
)

type Serializer interface {
	// Do runs fn once no other fn for key is running. Calls for the same key
	// must not nest.
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
	// Forget drops the state kept for key.
	Forget(key string)
	Close() error
}
