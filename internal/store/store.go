package store

import (
	"context"
	"fmt"

	"ReloadPilot/internal/model"
)

// Store persists one ScheduleState per account name.
//
// Load returns (nil, nil) for an unknown account. A Save is atomic per key: a concurrent
// Load sees either the previous or the new state, never a partial one.
type Store interface {
	Load(ctx context.Context, name string) (*model.ScheduleState, error)
	Save(ctx context.Context, name string, state *model.ScheduleState) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Backends accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
