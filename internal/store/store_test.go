package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    int64          `json:"id,omitempty"`
	Name  string         `json:"name"`
	Tags  []string       `json:"tags"`
	Meta  map[string]any `json:"meta,omitempty"`
	Flag  bool           `json:"flag"`
	Taken time.Time      `json:"taken"`
}

func TestEncodeDecode(t *testing.T) {
	taken := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row, err := Encode(sample{ID: 7, Name: "x", Tags: []string{"art"}, Meta: map[string]any{"lat": 1.5}, Taken: taken})
	require.NoError(t, err)

	assert.Equal(t, int64(7), row["id"])
	assert.Equal(t, []any{"art"}, row["tags"])
	assert.Equal(t, 1.5, row["meta"].(map[string]any)["lat"])
	assert.Equal(t, false, row["flag"])

	back, err := DecodeRow[sample](row)
	require.NoError(t, err)
	assert.Equal(t, int64(7), back.ID)
	assert.True(t, taken.Equal(back.Taken))
}

func TestEncode_OmitsZeroID(t *testing.T) {
	row, err := Encode(sample{Name: "new"})
	require.NoError(t, err)
	_, hasID := row["id"]
	assert.False(t, hasID)
}

func TestMatch(t *testing.T) {
	row := Row{"id": int64(3), "name": "art", "tags": []any{"art", "photo"}}

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{"no filters", nil, true},
		{"eq int across types", []Filter{Eq("id", 3)}, true},
		{"eq mismatch", []Filter{Eq("name", "photo")}, false},
		{"in", []Filter{In("id", int64(1), int64(3))}, true},
		{"in miss", []Filter{In[int64]("id", 1, 2)}, false},
		{"contains", []Filter{Contains("tags", "photo")}, true},
		{"contains miss", []Filter{Contains("tags", "film")}, false},
		{"contains on non-array", []Filter{Contains("name", "art")}, false},
		{"conjunction", []Filter{Eq("id", 3), Contains("tags", "film")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(row, tt.filters))
		})
	}
}

func TestSortRows_TimeStrings(t *testing.T) {
	rows := []Row{
		{"id": int64(1), "created_at": "2026-01-01T00:00:05Z"},
		{"id": int64(2), "created_at": "2026-01-01T00:00:05.5Z"},
		{"id": int64(3), "created_at": "2026-01-01T00:00:04Z"},
	}
	SortRows(rows, &Order{Column: "created_at", Desc: true})

	ids := []any{rows[0]["id"], rows[1]["id"], rows[2]["id"]}
	assert.Equal(t, []any{int64(2), int64(1), int64(3)}, ids)
}

func TestProject(t *testing.T) {
	row := Row{"id": int64(1), "name": "a", "count": int64(2)}
	assert.Equal(t, Row{"id": int64(1), "name": "a"}, Project(row, []string{"id", "name"}))
	assert.Equal(t, row, Project(row, nil))
}

func TestUnmarshalRows(t *testing.T) {
	rows, err := UnmarshalRows([]byte(`[{"id":1,"score":1.25,"tags":["a"]}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, 1.25, rows[0]["score"])
}
