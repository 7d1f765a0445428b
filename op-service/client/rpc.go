package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrDialAttemptsExhausted = errors.New("dial attempts exhausted")

// RPC is the JSON-RPC surface used by the chain data sources.
type RPC interface {
	Close()
	CallContext(ctx context.Context, result any, method string, args ...any) error
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

type rpcConfig struct {
	connectTimeout time.Duration
	callTimeout    time.Duration
	dialAttempts   int
	backoff        time.Duration
	limit          int
}

type RPCOption func(cfg *rpcConfig)

// WithConnectTimeout bounds every single dial attempt.
func WithConnectTimeout(d time.Duration) RPCOption {
	return func(cfg *rpcConfig) {
		cfg.connectTimeout = d
	}
}

// WithCallTimeout bounds every call made through the client.
func WithCallTimeout(d time.Duration) RPCOption {
	return func(cfg *rpcConfig) {
		cfg.callTimeout = d
	}
}

// WithDialAttempts configures the number of attempts for the initial dial to the RPC,
// attempts are executed with an exponential backoff strategy by default.
func WithDialAttempts(attempts int) RPCOption {
	return func(cfg *rpcConfig) {
		cfg.dialAttempts = attempts
	}
}

// WithFixedDialBackoff makes the RPC client use a fixed delay between dial attempts.
func WithFixedDialBackoff(d time.Duration) RPCOption {
	return func(cfg *rpcConfig) {
		cfg.backoff = d
	}
}

// WithRateLimit caps the number of concurrent requests in flight.
func WithRateLimit(limit int) RPCOption {
	return func(cfg *rpcConfig) {
		cfg.limit = limit
	}
}

// NewRPC returns the correct client.RPC instance for a given RPC url.
func NewRPC(ctx context.Context, lgr log.Logger, addr string, opts ...RPCOption) (RPC, error) {
	cfg := rpcConfig{
		connectTimeout: 10 * time.Second,
		callTimeout:    10 * time.Second,
		dialAttempts:   1,
		backoff:        2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dialAttempts < 1 {
		return nil, fmt.Errorf("expected at least one dial attempt, got %d", cfg.dialAttempts)
	}

	var underlying *rpc.Client
	var err error
	for i := 0; i < cfg.dialAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.backoff):
			}
		}
		underlying, err = CheckAndDial(ctx, lgr, addr, cfg.connectTimeout)
		if err == nil {
			break
		}
		lgr.Warn("Failed to dial RPC", "attempt", i+1, "err", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDialAttemptsExhausted, err)
	}

	var out RPC = &BaseRPCClient{c: underlying, callTimeout: cfg.callTimeout}
	if cfg.limit > 0 {
		out = NewLimitRPC(out, cfg.limit)
	}
	return out, nil
}

// CheckAndDial dials the endpoint once, failing fast if nothing listens on it.
func CheckAndDial(ctx context.Context, lgr log.Logger, addr string, connectTimeout time.Duration, opts ...rpc.ClientOption) (*rpc.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if !IsURLAvailable(ctx, addr, connectTimeout) {
		return nil, fmt.Errorf("address unavailable (%s)", addr)
	}
	c, err := rpc.DialOptions(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial address (%s): %w", addr, err)
	}
	lgr.Info("Connected to RPC", "addr", addr)
	return c, nil
}

// BaseRPCClient is a wrapper around a concrete *rpc.Client instance to make it compliant
// with the client.RPC interface.
type BaseRPCClient struct {
	c           *rpc.Client
	callTimeout time.Duration
}

func NewBaseRPCClient(c *rpc.Client) *BaseRPCClient {
	return &BaseRPCClient{c: c, callTimeout: 10 * time.Second}
}

func (b *BaseRPCClient) Close() {
	b.c.Close()
}

func (b *BaseRPCClient) CallContext(ctx context.Context, result any, method string, args ...any) error {
	cCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()
	return wrapErrData(b.c.CallContext(cCtx, result, method, args...))
}

func (b *BaseRPCClient) BatchCallContext(ctx context.Context, batch []rpc.BatchElem) error {
	cCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()
	return b.c.BatchCallContext(cCtx, batch)
}

// wrapErrData appends the data field of a JSON-RPC error to its message.
func wrapErrData(err error) error {
	if err == nil {
		return nil
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data := dataErr.ErrorData(); data != nil {
			return fmt.Errorf("%w: %v", err, data)
		}
	}
	return err
}
