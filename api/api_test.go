package api_test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casper-ee/execengine/api"
	"github.com/casper-ee/execengine/engine"
	"github.com/casper-ee/execengine/genesis"
	"github.com/casper-ee/execengine/key"
	"github.com/casper-ee/execengine/muxdb"
	"github.com/casper-ee/execengine/protocol"
	"github.com/casper-ee/execengine/state"
)

func newTestServer(t *testing.T) (*httptest.Server, key.Address, string) {
	t.Helper()
	db, err := muxdb.OpenMem()
	require.NoError(t, err)
	store := state.New(db)
	cfg := protocol.Default()
	eng := engine.NewState(store, cfg)

	addr := key.BytesToAddress(bytes.Repeat([]byte{0xAB}, key.Length))
	gen := genesis.NewDefault(cfg).WithAccount(addr, 1_000_000)
	genResp := eng.RunGenesis(gen)
	require.False(t, genResp.Failed, genResp.Message)

	router := api.New(eng)
	srv := httptest.NewServer(router)
	return srv, addr, encodeHex(genResp.PoststateHash[:])
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHandleValidate(t *testing.T) {
	srv, _, _ := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/validate", map[string]string{"wasm_hex": "0xdeadbeef"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Message)
}

func TestHandleQueryAccount(t *testing.T) {
	srv, addr, rootHex := newTestServer(t)
	defer srv.Close()

	baseKeyHex := encodeHex(key.Account(addr).Bytes())
	resp := postJSON(t, srv.URL+"/query", map[string]interface{}{
		"state_hash": rootHex,
		"base_key":   baseKeyHex,
		"path":       []string{},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Success  bool   `json:"success"`
		ValueHex string `json:"value_hex"`
		Message  string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success, out.Message)
	assert.NotEmpty(t, out.ValueHex)
}

func TestHandleQueryUnknownRoot(t *testing.T) {
	srv, addr, _ := newTestServer(t)
	defer srv.Close()

	bogusRoot := encodeHex(bytes.Repeat([]byte{0xFF}, key.Length))
	baseKeyHex := encodeHex(key.Account(addr).Bytes())
	resp := postJSON(t, srv.URL+"/query", map[string]interface{}{
		"state_hash": bogusRoot,
		"base_key":   baseKeyHex,
		"path":       []string{},
	})
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Success)
}

func TestHandleRunGenesis(t *testing.T) {
	srv, _, _ := newTestServer(t)
	defer srv.Close()

	addr := key.BytesToAddress(bytes.Repeat([]byte{0x11}, key.Length))
	resp := postJSON(t, srv.URL+"/run_genesis", map[string]interface{}{
		"accounts": []map[string]interface{}{
			{"address": encodeHex(addr[:]), "balance": 500},
		},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Success       bool   `json:"success"`
		PostStateHash string `json:"post_state_hash"`
		Message       string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success, out.Message)
	assert.NotEmpty(t, out.PostStateHash)
}

func TestHandleCommitBadPrestate(t *testing.T) {
	srv, _, _ := newTestServer(t)
	defer srv.Close()

	bogusRoot := encodeHex(bytes.Repeat([]byte{0x42}, key.Length))
	resp := postJSON(t, srv.URL+"/commit", map[string]interface{}{
		"prestate_hash":    bogusRoot,
		"effects":          map[string]interface{}{},
		"protocol_version": 1,
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "root_not_found", out.Kind)
}

func TestHandleValidateBadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/validate", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
