package driver

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type L1BlockRefSource interface {
	L1BlockRefByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, error)
}

type L2BlockRefSource interface {
	L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error)
}

// TipCursor is the latest safe L2 block, with the output it commits to.
type TipCursor struct {
	SafeHead   eth.L2BlockRef
	Header     *types.Header
	OutputRoot eth.Bytes32
}

// PipelineCursor tracks the L1 origin the pipeline derives from and the L2 tip it derives on.
type PipelineCursor struct {
	origin eth.L1BlockRef
	tip    TipCursor
}

// NewPipelineCursor positions the cursor at the safe head. The L1 origin is walked back by the
// channel timeout, so that channels opened before the safe head's origin can still be read.
func NewPipelineCursor(ctx context.Context, logger log.Logger, cfg *rollup.Config, safeHeader *types.Header, outputRoot eth.Bytes32,
	l1 L1BlockRefSource, l2 L2BlockRefSource) (*PipelineCursor, error) {
	safeHead, err := l2.L2BlockRefByHash(ctx, safeHeader.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load safe head %s: %w", safeHeader.Hash(), err)
	}
	channelTimeout := rollup.NewChainSpec(cfg).ChannelTimeout(safeHead.Time)
	originNum := cfg.Genesis.L1.Number
	if safeHead.L1Origin.Number > originNum+channelTimeout {
		originNum = safeHead.L1Origin.Number - channelTimeout
	}
	origin, err := l1.L1BlockRefByNumber(ctx, originNum)
	if err != nil {
		return nil, fmt.Errorf("failed to load L1 origin %d: %w", originNum, err)
	}
	logger.Info("Created pipeline cursor", "safe_head", safeHead, "l1_origin", origin, "channel_timeout", channelTimeout)
	return &PipelineCursor{
		origin: origin,
		tip: TipCursor{
			SafeHead:   safeHead,
			Header:     safeHeader,
			OutputRoot: outputRoot,
		},
	}, nil
}

func (c *PipelineCursor) Origin() eth.L1BlockRef {
	return c.origin
}

func (c *PipelineCursor) Tip() TipCursor {
	return c.tip
}

// Advance moves the cursor to a newly produced safe block, derived from origin.
func (c *PipelineCursor) Advance(origin eth.L1BlockRef, tip TipCursor) {
	c.origin = origin
	c.tip = tip
}
