package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableRequiresEndpoint(t *testing.T) {
	assert.False(t, New("", "").Available())
	assert.True(t, New("http://localhost:1234", "").Available())
}

func TestEmbedUnavailableReturnsError(t *testing.T) {
	e := New("", "")
	_, _, err := e.Embed(context.Background(), []string{"hi"}, Options{})
	require.Error(t, err)
}

func TestEmbedSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := embedResponse{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{0.1, 0.2, 0.3}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := New(server.URL, "")
	results, dims, err := e.Embed(context.Background(), []string{"a", "b"}, Options{Model: "m", BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, dims)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, r.Vector)
	}
}

func TestEmbedPerItemFailureDoesNotAbortBatch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := embedResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{1, 2}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := New(server.URL, "")
	results, _, err := e.Embed(context.Background(), []string{"fails", "ok"}, Options{BatchSize: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, []float32{1, 2}, results[1].Vector)
}
