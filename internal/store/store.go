// Package store persists seen entries and their fields.
package store

import (
	"context"
	"fmt"

	"github.com/pbaille/seen/internal/domain"
)

// Store is the backing storage of the seen registry.
// Implementations must make Insert's duplicate check and write atomic.
type Store interface {
	// Search returns entries with at least one field value containing
	// filter.Value, restricted to filter.Local when set.
	Search(ctx context.Context, filter domain.Filter) ([]domain.Entry, error)

	// FindDuplicate returns the first field, by ascending field id, whose value
	// equals one of values. Only entries whose locality equals *local are
	// considered when local is non-nil. It returns nil when nothing matches.
	FindDuplicate(ctx context.Context, values []string, local *bool) (*domain.Field, error)

	// Insert stores a new entry, failing with domain.DuplicateEntryError when
	// one of its values already exists in the entry's locality scope.
	Insert(ctx context.Context, entry domain.NewEntry) (*domain.Entry, error)

	Get(ctx context.Context, id int64) (*domain.Entry, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Supported drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open creates a store for the given driver; path is ignored by the memory driver
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverSQLite:
		return New(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}
