package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type state uint8

const (
	stateStepping state = iota
	stateProduced
	stateDone
	stateExhausted
	stateFatal
)

func (s state) String() string {
	switch s {
	case stateStepping:
		return "stepping"
	case stateProduced:
		return "produced"
	case stateDone:
		return "done"
	case stateExhausted:
		return "exhausted"
	case stateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s state) terminal() bool {
	return s == stateDone || s == stateExhausted || s == stateFatal
}

// Executor turns payload attributes into a block on top of parent.
// Attributes that can never form a valid block are reported with l2.ErrInvalidPayload.
type Executor interface {
	Execute(ctx context.Context, parent eth.L2BlockRef, attrs *eth.PayloadAttributes) (*types.Block, eth.Bytes32, error)
}

// L2Cursor follows the safe head of the driver.
type L2Cursor interface {
	SetCursor(ref eth.L2BlockRef) error
}

// ProgramDeriver expresses how derived attributes are executed to run the pure L1 to L2 state transition.
//
// The ProgramDeriver stops at the target block number, when L1 data runs out, or with an error.
type ProgramDeriver struct {
	logger   log.Logger
	pipeline derive.Pipeline
	executor Executor
	l2       L2Cursor
	cursor   *PipelineCursor

	target uint64
	state  state
	// attributes produced by the pipeline and not executed yet
	attrs *derive.AttributesWithParent
	err   error
}

func (d *ProgramDeriver) Step(ctx context.Context) {
	switch d.state {
	case stateStepping:
		d.onStepping(ctx)
	case stateProduced:
		d.onProduced(ctx)
	}
}

func (d *ProgramDeriver) Closing() bool {
	return d.state.terminal()
}

func (d *ProgramDeriver) onStepping(ctx context.Context) {
	tip := d.cursor.Tip()
	if tip.SafeHead.Number >= d.target {
		d.logger.Info("Derivation complete: reached L2 block as safe", "head", tip.SafeHead)
		d.state = stateDone
		return
	}
	attrs, err := derive.ProducePayload(ctx, d.logger, d.pipeline, tip.SafeHead)
	switch {
	case err == nil:
		d.attrs = attrs
		d.state = stateProduced
	case errors.Is(err, derive.ErrEndOfSource):
		d.logger.Info("Derivation complete: no further L1 data to process", "head", tip.SafeHead)
		d.err = fmt.Errorf("%w: safe head %s: %w", ErrExhausted, tip.SafeHead, err)
		d.state = stateExhausted
	default:
		d.fatal(fmt.Errorf("failed to derive attributes on %s: %w", tip.SafeHead, err))
	}
}

func (d *ProgramDeriver) onProduced(ctx context.Context) {
	attrs := d.attrs
	d.attrs = nil
	tip := d.cursor.Tip()
	if attrs.Parent.Hash != tip.SafeHead.Hash {
		d.fatal(fmt.Errorf("attributes built on %s, but safe head is %s", attrs.Parent, tip.SafeHead))
		return
	}
	block, outputRoot, err := d.executor.Execute(ctx, attrs.Parent, attrs.Attributes)
	if errors.Is(err, l2.ErrInvalidPayload) {
		d.onInvalidPayload(ctx, attrs, err)
		return
	} else if err != nil {
		d.fatal(fmt.Errorf("failed to execute attributes on %s: %w", attrs.Parent, err))
		return
	}
	ref, err := derive.L2BlockToBlockRef(d.pipeline.RollupConfig(), block)
	if err != nil {
		d.fatal(fmt.Errorf("produced invalid block %s: %w", block.Hash(), err))
		return
	}
	d.cursor.Advance(d.pipeline.Origin(), TipCursor{SafeHead: ref, Header: block.Header(), OutputRoot: outputRoot})
	if err := d.l2.SetCursor(ref); err != nil {
		d.fatal(err)
		return
	}
	d.logger.Info("Derived L2 block", "head", ref, "output_root", outputRoot, "l1_origin", d.pipeline.Origin())
	d.state = stateStepping
}

func (d *ProgramDeriver) onInvalidPayload(ctx context.Context, attrs *derive.AttributesWithParent, err error) {
	if attrs.Attributes.IsDepositsOnly() {
		d.fatal(fmt.Errorf("deposit-only attributes on %s failed: %w", attrs.Parent, err))
		return
	}
	if !d.pipeline.RollupConfig().IsHolocene(uint64(attrs.Attributes.Timestamp)) {
		d.logger.Warn("Dropping invalid attributes", "parent", attrs.Parent, "err", err)
		d.state = stateStepping
		return
	}
	d.logger.Warn("Retrying invalid attributes with deposits only", "parent", attrs.Parent, "err", err)
	if err := d.pipeline.Signal(ctx, derive.FlushChannelSignal{}); err != nil {
		d.fatal(fmt.Errorf("failed to flush channel: %w", err))
		return
	}
	d.attrs = attrs.WithDepositsOnly()
	d.state = stateProduced
}

func (d *ProgramDeriver) fatal(err error) {
	d.logger.Error("Derivation failed", "err", err)
	d.err = err
	d.state = stateFatal
}
