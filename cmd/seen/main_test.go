package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/seen/internal/config"
	"github.com/pbaille/seen/internal/domain"
)

// run executes the CLI against a database in dir
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cfg = config.NewForTesting()
	cfg.DBDriver = "sqlite"
	cfg.DBPath = filepath.Join(dir, "seen.db")

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_AddSearchForget(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "add", "A.Torrent", "-f", "url=http://123.com", "-f", "imdb_id=tt1234567")
	require.NoError(t, err)
	assert.Contains(t, out, "Added seen entry: 1")
	assert.Contains(t, out, "url = http://123.com")

	_, err = run(t, dir, "add", "Again", "-f", "link=http://123.com")
	require.Error(t, err)
	assert.True(t, domain.IsDuplicateEntry(err))

	out, err = run(t, dir, "search", "123", "-o", "json")
	require.NoError(t, err)
	var page struct {
		Entries []domain.Entry `json:"seen_entries"`
		Count   int            `json:"number_of_seen_entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, domain.DefaultTask, page.Entries[0].Task)

	out, err = run(t, dir, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Title:  A.Torrent")
	assert.Contains(t, out, "imdb_id: tt1234567")

	out, err = run(t, dir, "forget", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Forgot seen entry 1")

	_, err = run(t, dir, "forget", "1")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	out, err = run(t, dir, "search")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching seen entries found.")
}

func TestCLI_ForgetAll(t *testing.T) {
	dir := t.TempDir()
	for _, u := range []string{"a", "b", "c"} {
		_, err := run(t, dir, "add", u, "-f", "url=http://tracker/"+u)
		require.NoError(t, err)
	}
	_, err := run(t, dir, "add", "local", "--local", "-f", "url=http://tracker/d")
	require.NoError(t, err)

	out, err := run(t, dir, "forget-all", "tracker", "--local", "false")
	require.NoError(t, err)
	assert.Contains(t, out, "3 seen entries match")

	out, err = run(t, dir, "forget-all", "tracker", "--local", "false", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Forgot 3 seen entries")

	out, err = run(t, dir, "search", "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "number_of_seen_entries: 1")
}

func TestCLI_InvalidInput(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "add", "x", "-f", "no-equals")
	assert.Error(t, err)

	_, err = run(t, dir, "search", "--local", "sometimes")
	assert.Error(t, err)

	_, err = run(t, dir, "search", "--sort-by", "reason")
	assert.Error(t, err)

	_, err = run(t, dir, "search", "--output", "xml")
	assert.Error(t, err)

	_, err = run(t, dir, "show", "abc")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"two\nlines", 20, "two lines"},
		{"abcdefghij", 6, "abc..."},
		{"Amélie Poulain", 8, "Améli..."},
		{"日本語のタイトル", 5, "日本..."},
		{"héllo", 2, ".."},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
		})
	}
}
