package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

type recorded struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// fakeServer records requests and answers with a fixed status and body.
type fakeServer struct {
	mu     sync.Mutex
	reqs   []recorded
	status int
	body   string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, recorded{
		Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone(), Body: body,
	})
	status, resp := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (f *fakeServer) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

func setup(t *testing.T, status int, body string) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{status: status, body: body}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	return c, fake
}

func TestSelect(t *testing.T) {
	c, fake := setup(t, http.StatusOK, `[{"id": 7, "title": "sunset", "tags": ["art"], "hidden": false}]`)

	rows, err := c.Select(context.Background(), store.TableAtoms, store.Query{
		Columns: []string{"id", "title"},
		Filters: []store.Filter{store.Contains("tags", "art"), store.In("content_type", "image", "link")},
		Order:   &store.Order{Column: "created_at", Desc: true},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0]["id"])
	assert.Equal(t, []any{"art"}, rows[0]["tags"])

	req := fake.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/rest/v1/atoms", req.Path)
	assert.Equal(t, []string{"id,title"}, req.Query["select"])
	assert.Equal(t, []string{"cs.{art}"}, req.Query["tags"])
	assert.Equal(t, []string{"in.(image,link)"}, req.Query["content_type"])
	assert.Equal(t, []string{"created_at.desc.nullsfirst"}, req.Query["order"])
	assert.Equal(t, []string{"10"}, req.Query["limit"])
	assert.Equal(t, "secret", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get(headerRequestID))
}

func TestInsert(t *testing.T) {
	c, fake := setup(t, http.StatusCreated, `[{"id": 1, "name": "art"}]`)

	rows, err := c.Insert(context.Background(), store.TableTags, store.Row{"name": "art"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "return=representation", req.Header.Get("Prefer"))

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, []map[string]any{{"name": "art"}}, sent)
}

func TestUpsert(t *testing.T) {
	c, fake := setup(t, http.StatusCreated, ``)

	err := c.Upsert(context.Background(), store.TableSettings,
		store.Row{"key": "default_category", "value": map[string]any{"categoryId": 3}}, "key")
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, []string{"key"}, req.Query["on_conflict"])
	assert.Contains(t, req.Header.Get("Prefer"), "resolution=merge-duplicates")
}

func TestUpdateAndDelete(t *testing.T) {
	c, fake := setup(t, http.StatusNoContent, ``)
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, store.TableAtoms, store.Row{"hidden": true}, store.Eq("id", int64(4))))
	req := fake.last(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, []string{"eq.4"}, req.Query["id"])

	require.NoError(t, c.Delete(ctx, store.TableCategoryTags, store.Eq("category_id", int64(2)), store.Eq("tag_id", int64(9))))
	req = fake.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, []string{"eq.2"}, req.Query["category_id"])
	assert.Equal(t, []string{"eq.9"}, req.Query["tag_id"])

	assert.ErrorIs(t, c.Update(ctx, store.TableAtoms, store.Row{"hidden": true}), store.ErrInvalidInput)
	assert.ErrorIs(t, c.Delete(ctx, store.TableAtoms), store.ErrInvalidInput)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unique violation", http.StatusConflict, `{"code":"23505","message":"duplicate key"}`, store.ErrConflict},
		{"bad request", http.StatusBadRequest, `{"code":"PGRST100","message":"bad filter"}`, store.ErrInvalidInput},
		{"not found", http.StatusNotFound, `{"message":"relation does not exist"}`, store.ErrNotFound},
		{"server error", http.StatusServiceUnavailable, ``, store.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setup(t, tt.status, tt.body)
			_, err := c.Select(context.Background(), store.TableTags, store.Query{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Ping(context.Background()), store.ErrUnavailable)
}

func TestFilterParams(t *testing.T) {
	params := filterParams([]store.Filter{
		store.Eq("hidden", false),
		store.Eq("description", nil),
		store.In("name", "a,b", "plain"),
		store.Contains("tags", "two words"),
	})

	assert.Equal(t, "eq.false", params.Get("hidden"))
	assert.Equal(t, "is.null", params.Get("description"))
	assert.Equal(t, `in.("a,b",plain)`, params.Get("name"))
	assert.Equal(t, `cs.{"two words"}`, params.Get("tags"))
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}
