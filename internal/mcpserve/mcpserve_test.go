package mcpserve

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiralmem/internal/embedder"
	"spiralmem/internal/logging"
	"spiralmem/internal/search"
	"spiralmem/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, st.AutoMigrate())
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.CreateMemory(store.MemoryCreateInput{
		ContentType: store.ContentTypeVideo,
		Title:       "Kubernetes deep dive",
		Content:     "pods and services",
		Source:      "a",
	})
	require.NoError(t, err)

	searcher := search.New(st, embedder.New("", ""))
	return New(st, searcher, logging.Noop())
}

func TestHealthReportsOK(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRPCSearchKeywordReturnsResults(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "search.keyword",
		Params:  rpcSearchParam{Query: "kubernetes"},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	assert.Nil(t, rpcResp.Error)
	assert.NotNil(t, rpcResp.Result)
}

func TestRPCUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 2, Method: "does.not.exist"})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/rpc", "application/json", bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, -32601, rpcResp.Error.Code)
}
