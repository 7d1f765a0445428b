package client

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/semaphore"
)

var _ RPC = (*limitClient)(nil)

type limitClient struct {
	c    RPC
	sema *semaphore.Weighted
}

// NewLimitRPC limits concurrent RPC requests (excluding subscriptions) to a given number by wrapping
// another RPC client.
func NewLimitRPC(c RPC, concurrentRequests int) RPC {
	return &limitClient{c: c, sema: semaphore.NewWeighted(int64(concurrentRequests))}
}

func (lc *limitClient) Close() {
	lc.c.Close()
}

func (lc *limitClient) CallContext(ctx context.Context, result any, method string, args ...any) error {
	if err := lc.sema.Acquire(ctx, 1); err != nil {
		return err
	}
	defer lc.sema.Release(1)
	return lc.c.CallContext(ctx, result, method, args...)
}

func (lc *limitClient) BatchCallContext(ctx context.Context, b []rpc.BatchElem) error {
	if err := lc.sema.Acquire(ctx, 1); err != nil {
		return err
	}
	defer lc.sema.Release(1)
	return lc.c.BatchCallContext(ctx, b)
}
