package derive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// ChannelInReader reads a batch from the channel
// This does decompression and limits the max RLP size
// This is a pure function from the channel, but each channel (or channel fragment)
// must be tagged with an L1 inclusion block to be passed to the batch queue.
type ChannelInReader struct {
	log  log.Logger
	spec *rollup.ChainSpec
	cfg  *rollup.Config

	nextBatchFn func() (*BatchData, error)

	prev    RawChannelProvider
	metrics Metrics
}

type RawChannelProvider interface {
	ChannelFlusher
	Origin() eth.L1BlockRef
	NextData(ctx context.Context) ([]byte, error)
}

var (
	_ ResettableStage   = (*ChannelInReader)(nil)
	_ NextBatchProvider = (*ChannelInReader)(nil)
)

// NewChannelInReader creates a ChannelInReader, which should be Reset(origin) before use.
func NewChannelInReader(cfg *rollup.Config, log log.Logger, prev RawChannelProvider, metrics Metrics) *ChannelInReader {
	return &ChannelInReader{
		spec:    rollup.NewChainSpec(cfg),
		cfg:     cfg,
		log:     log,
		prev:    prev,
		metrics: metrics,
	}
}

func (cr *ChannelInReader) Origin() eth.L1BlockRef {
	return cr.prev.Origin()
}

// WriteChannel prepares the reader to read batches from the given channel data.
func (cr *ChannelInReader) WriteChannel(data []byte) error {
	origin := cr.Origin()
	f, err := BatchReader(bytes.NewBuffer(data), cr.spec.MaxRLPBytesPerChannel(origin.Time), cr.cfg.IsFjord(origin.Time))
	if err != nil {
		cr.log.Error("Error creating batch reader from channel data", "err", err)
		return err
	}
	cr.nextBatchFn = f
	cr.metrics.RecordChannelInputBytes(len(data))
	return nil
}

// NextChannel forces the next read to continue with the next channel,
// ignoring any remaining data in the current channel.
func (cr *ChannelInReader) NextChannel() {
	cr.nextBatchFn = nil
}

// NextBatch pulls out the next batch from the channel if it has it.
// It returns io.EOF when it cannot make any more progress.
// It will return a temporary error if it needs to be called again to advance some internal state.
func (cr *ChannelInReader) NextBatch(ctx context.Context) (*SingularBatch, error) {
	if cr.nextBatchFn == nil {
		if data, err := cr.prev.NextData(ctx); err == io.EOF {
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		} else if err := cr.WriteChannel(data); err != nil {
			return nil, NewTemporaryError(err)
		}
	}

	batchData, err := cr.nextBatchFn()
	if err == io.EOF {
		cr.NextChannel()
		return nil, NotEnoughData
	} else if err != nil {
		cr.log.Warn("failed to read batch from channel reader, skipping to next channel now", "err", err)
		cr.NextChannel()
		return nil, NotEnoughData
	}

	switch batchData.GetBatchType() {
	case SingularBatchType:
		batch, ok := batchData.AsSingularBatch()
		if !ok {
			return nil, NewCriticalError(fmt.Errorf("batch of type %d carries no singular batch", SingularBatchType))
		}
		batch.LogContext(cr.log).Debug("decoded singular batch from channel", "stage_origin", cr.Origin())
		cr.metrics.RecordDerivedBatches("singular")
		return batch, nil
	case SpanBatchType:
		if origin := cr.Origin(); !cr.cfg.IsDelta(origin.Time) {
			// Span batches are not valid before Delta: skip the batch and read the next one.
			cr.log.Error("cannot accept span batch in L1 block before Delta", "origin", origin.ID())
			return nil, NotEnoughData
		}
		cr.log.Error("span batches are not supported, dropping batch", "origin", cr.Origin().ID())
		return nil, NotEnoughData
	default:
		// error is bubbled up to user, but pipeline can skip the batch and continue after.
		return nil, NewTemporaryError(fmt.Errorf("unrecognized batch type: %d", batchData.GetBatchType()))
	}
}

func (cr *ChannelInReader) Reset(ctx context.Context, _ eth.L1BlockRef, _ eth.SystemConfig) error {
	cr.nextBatchFn = nil
	return io.EOF
}

func (cr *ChannelInReader) FlushChannel() {
	cr.nextBatchFn = nil
	cr.prev.FlushChannel()
}
