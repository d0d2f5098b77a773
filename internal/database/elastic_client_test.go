package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestElastic(t *testing.T, handler http.HandlerFunc) *ElasticSearchClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	es, err := NewElasticSearchClient(ts.URL, "employees")
	require.NoError(t, err)
	return es
}

func TestSearchEmployeesByName(t *testing.T) {
	var gotPath, gotBody string
	es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"took":1,"hits":{"total":{"value":1,"relation":"eq"},"hits":[
			{"_index":"employees","_id":"1","_source":{"id":"1","name":"Kari Nordmann","email":"kari@company.no"}}
		]}}`)
	})

	docs, err := es.SearchEmployeesByName(context.Background(), "kari", 10)
	require.NoError(t, err)

	assert.Equal(t, "/employees/_search", gotPath)
	assert.Contains(t, gotBody, `"multi_match"`)
	assert.Contains(t, gotBody, `"kari"`)
	require.Len(t, docs, 1)
	assert.Equal(t, "kari@company.no", docs[0].Email)
}

func TestBulkIndexEmployees(t *testing.T) {
	t.Run("no docs skips the request", func(t *testing.T) {
		called := false
		es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) { called = true })
		require.NoError(t, es.BulkIndexEmployees(context.Background(), nil))
		assert.False(t, called)
	})

	t.Run("item failure is reported", func(t *testing.T) {
		es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/_bulk"))
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"took":1,"errors":true,"items":[
				{"index":{"_index":"employees","_id":"1","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}
			]}`)
		})

		err := es.BulkIndexEmployees(context.Background(), []EmployeeDoc{{ID: "1", Name: "A"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad field")
	})

	t.Run("success", func(t *testing.T) {
		es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"took":1,"errors":false,"items":[{"index":{"_index":"employees","_id":"1","status":201}}]}`)
		})
		assert.NoError(t, es.BulkIndexEmployees(context.Background(), []EmployeeDoc{{ID: "1", Name: "A"}}))
	})
}
