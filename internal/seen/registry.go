// Package seen implements the seen registry: search, paging, duplicate-checked
// creation and deletion of seen entries on top of a store.
package seen

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pbaille/seen/internal/domain"
	"github.com/pbaille/seen/internal/metrics"
	"github.com/pbaille/seen/internal/store"
)

// PageRequest selects the ordering and page of a search
type PageRequest struct {
	Page     int
	PageSize int
	SortBy   domain.SortKey
	Order    domain.Order
}

// Registry is the entry point for seen entry operations. It is safe for
// concurrent use.
type Registry struct {
	store store.Store
	log   zerolog.Logger

	// one lock per locality scope; creates in the same scope run one at a time
	globalMu sync.Mutex
	localMu  sync.Mutex
}

// New creates a Registry over the given store
func New(s store.Store, log zerolog.Logger) *Registry {
	return &Registry{store: s, log: log.With().Str("component", "seen").Logger()}
}

func (r *Registry) scopeLock(local bool) *sync.Mutex {
	if local {
		return &r.localMu
	}
	return &r.globalMu
}

// Search returns the entries matching filter in storage order
func (r *Registry) Search(ctx context.Context, filter domain.Filter) ([]domain.Entry, error) {
	return r.store.Search(ctx, filter)
}

// Page searches and returns one sorted page of the results
func (r *Registry) Page(ctx context.Context, filter domain.Filter, req PageRequest) (*Page, error) {
	entries, err := r.store.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return SortAndPage(entries, req.SortBy, req.Order.Descending(), req.Page, req.PageSize)
}

// IsDuplicate returns the first stored field whose value is one of values,
// looking only at entries with the given locality when local is set
func (r *Registry) IsDuplicate(ctx context.Context, values []string, local *bool) (*domain.Field, error) {
	return r.store.FindDuplicate(ctx, values, local)
}

// Create validates and stores a new entry unless one of its field values was
// already seen in the same locality scope. An empty task defaults to
// domain.DefaultTask.
func (r *Registry) Create(ctx context.Context, in domain.NewEntry) (*domain.Entry, error) {
	if in.Task == "" {
		in.Task = domain.DefaultTask
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	mu := r.scopeLock(in.Local)
	mu.Lock()
	defer mu.Unlock()

	dup, err := r.store.FindDuplicate(ctx, in.Fields.Values(), &in.Local)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		metrics.DuplicatesRejected.Inc()
		r.log.Debug().Str("value", dup.Value).Int64("existing_entry", dup.EntryID).Msg("duplicate seen entry rejected")
		return nil, domain.DuplicateEntryError{Value: dup.Value, Existing: *dup}
	}

	entry, err := r.store.Insert(ctx, in)
	if err != nil {
		if domain.IsDuplicateEntry(err) {
			metrics.DuplicatesRejected.Inc()
		}
		return nil, err
	}

	metrics.EntriesCreated.Inc()
	r.log.Info().
		Int64("id", entry.ID).
		Str("title", entry.Title).
		Str("task", entry.Task).
		Bool("local", entry.Local).
		Msg("seen entry added")
	return entry, nil
}

// Get returns a single entry
func (r *Registry) Get(ctx context.Context, id int64) (*domain.Entry, error) {
	return r.store.Get(ctx, id)
}

// Delete removes one entry, failing with domain.NotFoundError when it does not exist
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RecordDeleted("single", 1)
	r.log.Info().Int64("id", id).Msg("seen entry deleted")
	return nil
}

// DeleteBulk deletes every entry matching filter and returns how many were
// removed. It keeps going after an individual failure; the failed ids are
// reported in a *domain.DeleteFailedError and nothing is rolled back.
func (r *Registry) DeleteBulk(ctx context.Context, filter domain.Filter) (int, error) {
	entries, err := r.store.Search(ctx, filter)
	if err != nil {
		return 0, err
	}

	var (
		deleted  int
		failed   []int64
		firstErr error
	)
	for _, e := range entries {
		if err := r.store.Delete(ctx, e.ID); err != nil {
			r.log.Warn().Err(err).Int64("id", e.ID).Msg("bulk delete: entry not removed")
			failed = append(failed, e.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}

	metrics.RecordDeleted("bulk", deleted)
	r.log.Info().
		Str("value", filter.Value).
		Int("matched", len(entries)).
		Int("deleted", deleted).
		Int("failed", len(failed)).
		Msg("seen entries bulk deleted")

	if len(failed) > 0 {
		metrics.DeleteFailures.Add(float64(len(failed)))
		return deleted, &domain.DeleteFailedError{IDs: failed, Deleted: deleted, Cause: firstErr}
	}
	return deleted, nil
}

// Health pings the store and returns the number of stored entries
func (r *Registry) Health(ctx context.Context) (int, error) {
	if err := r.store.Ping(ctx); err != nil {
		return 0, err
	}
	return r.store.Count(ctx)
}
