package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schedbot/internal/schedule"
)

// ErrNotFound is returned by Get when no definition has the id.
var ErrNotFound = errors.New("storage: definition not found")

// Config configures storage.
type Config struct {
	Driver      string
	Path        string        // sqlite database file or file snapshot path
	DSN         string        // postgres connection string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the Definition Store. Every method is atomic with respect to the others.
type Store interface {
	Create(ctx context.Context, def schedule.Definition) (int64, error)
	Get(ctx context.Context, id int64) (schedule.Definition, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]schedule.Definition, error)
	// DeleteIfOwned deletes id only when it belongs to ownerID. It reports
	// false, without mutation, when the id is absent or owned by someone else.
	DeleteIfOwned(ctx context.Context, id, ownerID int64) (bool, error)
	ListAll(ctx context.Context) ([]schedule.Definition, error)
	Close() error
}

// Error is a storage failure of a single operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
