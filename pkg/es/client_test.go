package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"doubtiq-go/internal/config"
	"doubtiq-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES answers just enough of the Elasticsearch API for DoubtIndex.
type fakeES struct {
	mu        sync.Mutex
	created   bool
	indexed   map[string]string
	lastQuery string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/doubts":
		if f.created {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/doubts":
		f.created = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case strings.HasPrefix(r.URL.Path, "/doubts/_doc/"):
		f.indexed[strings.TrimPrefix(r.URL.Path, "/doubts/_doc/")] = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.URL.Path == "/doubts/_search":
		f.lastQuery = string(body)
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_score":1.5,"_source":{"doubt_id":3,"user_id":1,"question":"what is a derivative","answer":"a rate of change","created_at":"2024-01-01T00:00:00Z"}}]}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestIndex(t *testing.T) (*DoubtIndex, *fakeES) {
	fake := &fakeES{indexed: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := NewDoubtIndex(config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "doubts"})
	require.NoError(t, err)
	return idx, fake
}

func TestNewDoubtIndexCreatesIndex(t *testing.T) {
	_, fake := newTestIndex(t)
	assert.True(t, fake.created)
}

func TestIndexAndSearch(t *testing.T) {
	idx, fake := newTestIndex(t)

	doubt := &model.Doubt{ID: 3, UserID: 1, Question: "what is a derivative", Answer: "a rate of change", CreatedAt: time.Now()}
	require.NoError(t, idx.Index(context.Background(), doubt))

	var stored model.DoubtDocument
	require.NoError(t, json.Unmarshal([]byte(fake.indexed["3"]), &stored))
	assert.Equal(t, uint(1), stored.UserID)

	hits, err := idx.Search(context.Background(), 1, "derivative", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint(3), hits[0].ID)
	assert.Equal(t, 1.5, hits[0].Score)
	assert.Contains(t, fake.lastQuery, `"user_id":1`)
}
