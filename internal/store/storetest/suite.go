// Package storetest holds a compliance suite shared by store implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/seen/internal/domain"
	"github.com/pbaille/seen/internal/store"
)

// Run exercises the store.Store contract. makeStore must return a clean,
// isolated store for every call.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		s := makeStore(t)

		e, err := s.Insert(ctx, domain.NewEntry{
			Title:  "A.Torrent",
			Task:   "tv",
			Reason: "manual",
			Fields: domain.FieldValues{"url": "http://123.com", "imdb_id": "tt1234567"},
		})
		require.NoError(t, err)
		assert.NotZero(t, e.ID)
		assert.False(t, e.Added.IsZero())
		require.Len(t, e.Fields, 2)
		assert.Equal(t, "imdb_id", e.Fields[0].Field)
		assert.Equal(t, "url", e.Fields[1].Field)
		for _, f := range e.Fields {
			assert.Equal(t, e.ID, f.EntryID)
		}

		got, err := s.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "A.Torrent", got.Title)
		assert.Equal(t, "tv", got.Task)
		assert.Equal(t, "manual", got.Reason)
		assert.False(t, got.Local)
		assert.True(t, got.Added.Equal(e.Added))
		require.Len(t, got.Fields, 2)
		assert.Equal(t, e.Fields[0].ID, got.Fields[0].ID)
		assert.Equal(t, "tt1234567", got.Fields[0].Value)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("get missing", func(t *testing.T) {
		s := makeStore(t)
		_, err := s.Get(ctx, 42)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("search by value and locality", func(t *testing.T) {
		s := makeStore(t)
		a := mustInsert(t, s, "a", true, domain.FieldValues{"url": "http://example.com/Foo"})
		b := mustInsert(t, s, "b", false, domain.FieldValues{"url": "http://example.com/bar", "title": "Foo Bar"})
		c := mustInsert(t, s, "c", false, domain.FieldValues{"url": "http://other.org/baz"})

		all, err := s.Search(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID, c.ID}, ids(all))

		foo, err := s.Search(ctx, domain.Filter{Value: "Foo"})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, b.ID}, ids(foo))
		require.Len(t, foo[1].Fields, 2, "matching entries carry all their fields")

		lower, err := s.Search(ctx, domain.Filter{Value: "foo"})
		require.NoError(t, err)
		assert.Empty(t, lower, "value match is case sensitive")

		global, err := s.Search(ctx, domain.Filter{Value: "example.com", Local: domain.BoolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, []int64{b.ID}, ids(global))

		local, err := s.Search(ctx, domain.Filter{Local: domain.BoolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID}, ids(local))
	})

	t.Run("search treats wildcard characters literally", func(t *testing.T) {
		s := makeStore(t)
		mustInsert(t, s, "a", false, domain.FieldValues{"url": "abc"})
		got, err := s.Search(ctx, domain.Filter{Value: "a%c"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("find duplicate respects locality", func(t *testing.T) {
		s := makeStore(t)
		a := mustInsert(t, s, "A", true, domain.FieldValues{"url": "x"})
		b := mustInsert(t, s, "B", false, domain.FieldValues{"url": "x"})

		f, err := s.FindDuplicate(ctx, []string{"x"}, domain.BoolPtr(true))
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, a.ID, f.EntryID)

		f, err = s.FindDuplicate(ctx, []string{"x"}, domain.BoolPtr(false))
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, b.ID, f.EntryID)

		f, err = s.FindDuplicate(ctx, []string{"x"}, nil)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, a.ID, f.EntryID, "oldest field wins")

		f, err = s.FindDuplicate(ctx, []string{"y", "X"}, nil)
		require.NoError(t, err)
		assert.Nil(t, f)

		f, err = s.FindDuplicate(ctx, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("insert rejects duplicate in scope", func(t *testing.T) {
		s := makeStore(t)
		first := mustInsert(t, s, "first", false, domain.FieldValues{"url": "x", "imdb_id": "tt1"})

		_, err := s.Insert(ctx, domain.NewEntry{Title: "second", Task: "t", Fields: domain.FieldValues{"other": "tt1"}})
		require.Error(t, err)
		var dup domain.DuplicateEntryError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "tt1", dup.Value)
		assert.Equal(t, first.ID, dup.Existing.EntryID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "duplicate must not be stored")

		_, err = s.Insert(ctx, domain.NewEntry{Title: "local", Task: "t", Local: true, Fields: domain.FieldValues{"url": "x"}})
		assert.NoError(t, err, "other scope is not a duplicate")
	})

	t.Run("delete twice", func(t *testing.T) {
		s := makeStore(t)
		e := mustInsert(t, s, "gone", false, domain.FieldValues{"url": "x"})

		require.NoError(t, s.Delete(ctx, e.ID))
		err := s.Delete(ctx, e.ID)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))

		f, err := s.FindDuplicate(ctx, []string{"x"}, nil)
		require.NoError(t, err)
		assert.Nil(t, f, "fields are removed with their entry")
	})

	t.Run("ids are not reused", func(t *testing.T) {
		s := makeStore(t)
		mustInsert(t, s, "a", false, domain.FieldValues{"url": "a"})
		b := mustInsert(t, s, "b", false, domain.FieldValues{"url": "b"})
		require.NoError(t, s.Delete(ctx, b.ID))

		c := mustInsert(t, s, "c", false, domain.FieldValues{"url": "c"})
		assert.Greater(t, c.ID, b.ID)
		assert.Greater(t, c.Fields[0].ID, b.Fields[0].ID)
	})

	t.Run("ping", func(t *testing.T) {
		s := makeStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

func mustInsert(t *testing.T, s store.Store, title string, local bool, fields domain.FieldValues) *domain.Entry {
	t.Helper()
	e, err := s.Insert(context.Background(), domain.NewEntry{
		Title:  title,
		Task:   domain.DefaultTask,
		Local:  local,
		Fields: fields,
	})
	require.NoError(t, err)
	return e
}

func ids(entries []domain.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
