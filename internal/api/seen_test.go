package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/seen/internal/domain"
	"github.com/pbaille/seen/internal/seen"
	"github.com/pbaille/seen/internal/store"
)

type pageResponse struct {
	SeenEntries []domain.Entry `json:"seen_entries"`
	Count       int            `json:"number_of_seen_entries"`
	TotalPages  int            `json:"total_number_of_pages"`
	PageNumber  int            `json:"page_number"`
}

func newTestServer(t *testing.T, opts Options) (http.Handler, *seen.Registry) {
	t.Helper()
	reg := seen.New(store.NewMemory(), zerolog.Nop())
	return New(reg, zerolog.Nop(), opts).Handler(), reg
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func seed(t *testing.T, reg *seen.Registry, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := reg.Create(context.Background(), domain.NewEntry{
			Title:  fmt.Sprintf("entry %02d", i),
			Local:  i%2 == 0,
			Fields: domain.FieldValues{"url": fmt.Sprintf("http://site/%02d", i)},
		})
		require.NoError(t, err)
	}
}

func TestCreateSeen(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPost, "/api/seen/", map[string]interface{}{
		"title":  "A.Torrent",
		"fields": map[string]string{"url": "http://123.com", "imdb_id": "tt1234567"},
		"reason": "added by hand",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	e := decode[domain.Entry](t, rr)
	assert.NotZero(t, e.ID)
	assert.Equal(t, "A.Torrent", e.Title)
	assert.Equal(t, domain.DefaultTask, e.Task)
	assert.Equal(t, "added by hand", e.Reason)
	assert.False(t, e.Local)
	assert.Len(t, e.Fields, 2)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	// duplicate value in the same scope
	rr = do(t, h, http.MethodPost, "/api/seen", map[string]interface{}{
		"title":  "Other",
		"fields": map[string]string{"link": "http://123.com"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errResp := decode[ErrorResponse](t, rr)
	assert.Equal(t, "error", errResp.Status)
	assert.Equal(t, "Seen entry matching the value 'http://123.com' is already added", errResp.Message)

	// same value, local scope
	rr = do(t, h, http.MethodPost, "/api/seen/", map[string]interface{}{
		"title":  "Local",
		"task":   "tv",
		"local":  true,
		"fields": map[string]string{"url": "http://123.com"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "tv", decode[domain.Entry](t, rr).Task)
}

func TestCreateSeen_Invalid(t *testing.T) {
	h, reg := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing title", `{"fields":{"url":"x"}}`},
		{"missing fields", `{"title":"x"}`},
		{"empty fields", `{"title":"x","fields":{}}`},
		{"empty value", `{"title":"x","fields":{"url":""}}`},
		{"empty name", `{"title":"x","fields":{"":"v"}}`},
		{"non string value", `{"title":"x","fields":{"url":1}}`},
		{"unknown property", `{"title":"x","fields":{"url":"v"},"id":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/seen/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}

	n, err := reg.Health(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchSeen_Pagination(t *testing.T) {
	h, reg := newTestServer(t, Options{})
	seed(t, reg, 12)

	var sizes []int
	for page := 1; page <= 3; page++ {
		rr := do(t, h, http.MethodGet, fmt.Sprintf("/api/seen/?max=5&page=%d", page), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[pageResponse](t, rr)
		assert.Equal(t, 12, resp.Count)
		assert.Equal(t, 3, resp.TotalPages)
		assert.Equal(t, page, resp.PageNumber)
		sizes = append(sizes, len(resp.SeenEntries))
	}
	assert.Equal(t, []int{5, 5, 2}, sizes)

	rr := do(t, h, http.MethodGet, "/api/seen/?max=5&page=4", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "page 4 does not exist", decode[ErrorResponse](t, rr).Message)
}

func TestSearchSeen_IntegerLimits(t *testing.T) {
	h, reg := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/api/seen/?page=3458764513820540929&max=4", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Empty(t, decode[pageResponse](t, rr).SeenEntries)

	seed(t, reg, 2)

	rr = do(t, h, http.MethodGet, "/api/seen/?max=9223372036854775807", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[pageResponse](t, rr)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Len(t, resp.SeenEntries, 2)

	rr = do(t, h, http.MethodGet, "/api/seen/?page=9223372036854775807&max=9223372036854775807", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
}

func TestSearchSeen_Defaults(t *testing.T) {
	h, reg := newTestServer(t, Options{})
	seed(t, reg, 3)

	rr := do(t, h, http.MethodGet, "/api/seen/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[pageResponse](t, rr)
	assert.Equal(t, 1, resp.PageNumber)
	assert.Equal(t, 1, resp.TotalPages)
	require.Len(t, resp.SeenEntries, 3)
	// added desc
	assert.Equal(t, "entry 03", resp.SeenEntries[0].Title)
	assert.Equal(t, "entry 01", resp.SeenEntries[2].Title)
}

func TestSearchSeen_Empty(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/api/seen/?page=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"seen_entries":[],"number_of_seen_entries":0,"total_number_of_pages":0,"page_number":1}`, rr.Body.String())
}

func TestSearchSeen_Filters(t *testing.T) {
	h, reg := newTestServer(t, Options{})
	seed(t, reg, 12)

	rr := do(t, h, http.MethodGet, "/api/seen/?value=site%2F1&sort_by=title&order=asc", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[pageResponse](t, rr)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "entry 10", resp.SeenEntries[0].Title)
	assert.Equal(t, "entry 12", resp.SeenEntries[2].Title)

	rr = do(t, h, http.MethodGet, "/api/seen/?is_seen_local=true&sort_by=id&order=asc", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = decode[pageResponse](t, rr)
	assert.Equal(t, 6, resp.Count)
	for _, e := range resp.SeenEntries {
		assert.True(t, e.Local)
	}

	rr = do(t, h, http.MethodGet, "/api/seen/?is_seen_local=false&value=site%2F1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[pageResponse](t, rr).Count)
}

func TestSearchSeen_InvalidQuery(t *testing.T) {
	h, _ := newTestServer(t, Options{MaxPageSize: 100})

	for _, q := range []string{
		"page=0",
		"page=abc",
		"max=0",
		"max=101",
		"sort_by=reason",
		"order=up",
		"is_seen_local=maybe",
	} {
		t.Run(q, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, "/api/seen/?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestDeleteSeenEntry(t *testing.T) {
	h, reg := newTestServer(t, Options{})
	seed(t, reg, 1)

	rr := do(t, h, http.MethodGet, "/api/seen/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "entry 01", decode[domain.Entry](t, rr).Title)

	rr = do(t, h, http.MethodDelete, "/api/seen/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/api/seen/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/seen/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteSeen_Bulk(t *testing.T) {
	h, reg := newTestServer(t, Options{})
	seed(t, reg, 12)

	rr := do(t, h, http.MethodDelete, "/api/seen/?value=site%2F1&is_seen_local=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deleted":2}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/api/seen/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deleted":10}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/api/seen/?is_seen_local=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// failingStore fails to delete one specific entry
type failingStore struct {
	store.Store
	failID int64
}

func (f *failingStore) Delete(ctx context.Context, id int64) error {
	if id == f.failID {
		return domain.NotFoundError{ID: id}
	}
	return f.Store.Delete(ctx, id)
}

func TestDeleteSeen_BulkPartialFailure(t *testing.T) {
	mem := store.NewMemory()
	seed(t, seen.New(mem, zerolog.Nop()), 3)
	reg := seen.New(&failingStore{Store: mem, failID: 2}, zerolog.Nop())
	h := New(reg, zerolog.Nop(), Options{}).Handler()

	rr := do(t, h, http.MethodDelete, "/api/seen/", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Could not delete entry ID 2", decode[ErrorResponse](t, rr).Message)

	n, err := mem.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHealthAndMetrics(t *testing.T) {
	h, reg := newTestServer(t, Options{})
	seed(t, reg, 2)

	rr := do(t, h, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","entries":2}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "seen_entries_created_total")
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodOptions, "/api/seen/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestRequestIDPropagated(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}
