// Package storage defines the result storage backends for snowline runs.
package storage

import (
	"context"
	"sync"
	"time"
)

// StorageEngineInterface is implemented by every storage backend. The
// returned channel is closed by the caller when no more records will be
// sent.
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- Record
}

// Reader is implemented by backends that can serve stored results back to
// the REST API.
type Reader interface {
	AOIs(ctx context.Context) ([]string, error)
	Snowlines(ctx context.Context, aoi string, from, to time.Time) ([]Record, error)
}
