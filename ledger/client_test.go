package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handle func(method string, params []json.RawMessage) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(handle(req.Method, req.Params)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrentEpoch(t *testing.T) {
	srv := rpcServer(t, func(method string, _ []json.RawMessage) string {
		assert.Equal(t, methodSystemState, method)
		return `{"jsonrpc":"2.0","id":1,"result":{"epoch":"731","protocolVersion":"70"}}`
	})

	epoch, err := NewClient(srv.URL, time.Second).CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(731), epoch)
}

func TestCurrentEpoch_RPCError(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"node syncing"}}`
	})

	_, err := NewClient(srv.URL, time.Second).CurrentEpoch(context.Background())
	assert.ErrorContains(t, err, "node syncing")
}

func TestCurrentEpoch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CurrentEpoch(context.Background())
	assert.ErrorContains(t, err, "status 502")
}

func TestExecuteTransactionBlock(t *testing.T) {
	srv := rpcServer(t, func(method string, params []json.RawMessage) string {
		assert.Equal(t, methodExecute, method)
		require.Len(t, params, 4)
		assert.JSONEq(t, `"AQID"`, string(params[0]))
		assert.JSONEq(t, `["sig"]`, string(params[1]))
		return `{"jsonrpc":"2.0","id":1,"result":{"digest":"abc","effects":{"status":{"status":"success"}}}}`
	})

	res, err := NewClient(srv.URL, time.Second).ExecuteTransactionBlock(context.Background(), []byte{1, 2, 3}, []string{"sig"})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Digest)
}

func TestExecuteTransactionBlock_Rejected(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Invalid user signature"}}`
	})

	_, err := NewClient(srv.URL, time.Second).ExecuteTransactionBlock(context.Background(), []byte{1}, []string{"sig"})
	assert.ErrorIs(t, err, ErrSubmissionRejected)
	assert.ErrorContains(t, err, "Invalid user signature")
}

func TestExecuteTransactionBlock_EffectsFailure(t *testing.T) {
	srv := rpcServer(t, func(string, []json.RawMessage) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"digest":"d","effects":{"status":{"status":"failure","error":"InsufficientGas"}}}}`
	})

	res, err := NewClient(srv.URL, time.Second).ExecuteTransactionBlock(context.Background(), []byte{1}, []string{"sig"})
	assert.ErrorIs(t, err, ErrSubmissionRejected)
	require.NotNil(t, res)
	assert.Equal(t, "d", res.Digest)
}
