package dial

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/client"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
)

func TestDialRPCClientWithTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x1"})
	}))
	defer srv.Close()

	logger := testlog.Logger(t, log.LevelInfo)
	rpcCl, err := DialRPCClientWithTimeout(context.Background(), time.Second, logger, srv.URL, client.WithRateLimit(2))
	require.NoError(t, err)
	defer rpcCl.Close()

	var result string
	require.NoError(t, rpcCl.CallContext(context.Background(), &result, "eth_chainId"))
	require.Equal(t, "0x1", result)
}

func TestDialRPCClientWithTimeoutUnavailable(t *testing.T) {
	logger := testlog.Logger(t, log.LevelCrit)
	_, err := DialRPCClientWithTimeout(context.Background(), 100*time.Millisecond, logger, "http://localhost:0")
	require.Error(t, err)
}
