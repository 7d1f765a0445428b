package dial

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-service/client"
)

// DefaultDialTimeout is a default timeout for dialing a client.
const DefaultDialTimeout = 1 * time.Minute
const defaultRetryCount = 30
const defaultRetryTime = 2 * time.Second
const defaultConnectTimeout = 10 * time.Second

// DialRPCClientWithTimeout attempts to dial the RPC provider using the provided URL.
// The dial is retried with a fixed backoff until timeout elapses.
func DialRPCClientWithTimeout(ctx context.Context, timeout time.Duration, log log.Logger, url string, callerOpts ...client.RPCOption) (client.RPC, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []client.RPCOption{
		client.WithFixedDialBackoff(defaultRetryTime),
		client.WithDialAttempts(defaultRetryCount),
		client.WithConnectTimeout(defaultConnectTimeout),
	}
	opts = append(opts, callerOpts...)
	return client.NewRPC(ctx, log, url, opts...)
}
