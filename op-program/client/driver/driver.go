package driver

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// ErrExhausted is returned when the L1 data runs out before the target block is derived.
var ErrExhausted = errors.New("derivation exhausted L1 data")

var errTooManySteps = errors.New("way too many derivation steps, something is wrong")

const maxSteps = 1_000_000

type Driver struct {
	logger   log.Logger
	pipeline derive.Pipeline
	executor Executor
	l2       L2Cursor
	cursor   *PipelineCursor
}

func NewDriver(logger log.Logger, pipeline derive.Pipeline, executor Executor, l2 L2Cursor, cursor *PipelineCursor) *Driver {
	return &Driver{
		logger:   logger,
		pipeline: pipeline,
		executor: executor,
		l2:       l2,
		cursor:   cursor,
	}
}

// AdvanceToTarget derives and executes blocks until the block with number target is the safe head.
// It returns the new safe head and its output root. If L1 data runs out first, the error wraps
// ErrExhausted and the latest safe head is still returned.
func (d *Driver) AdvanceToTarget(ctx context.Context, target uint64) (eth.L2BlockRef, eth.Bytes32, error) {
	prog := &ProgramDeriver{
		logger:   d.logger,
		pipeline: d.pipeline,
		executor: d.executor,
		l2:       d.l2,
		cursor:   d.cursor,
		target:   target,
		state:    stateStepping,
	}
	for steps := 0; !prog.Closing(); steps++ {
		if steps > maxSteps { // sanity check, in case of bugs.
			return eth.L2BlockRef{}, eth.Bytes32{}, errTooManySteps
		}
		if err := ctx.Err(); err != nil {
			return eth.L2BlockRef{}, eth.Bytes32{}, err
		}
		prog.Step(ctx)
	}
	tip := d.cursor.Tip()
	switch prog.state {
	case stateDone:
		return tip.SafeHead, tip.OutputRoot, nil
	case stateExhausted:
		return tip.SafeHead, tip.OutputRoot, prog.err
	default:
		return eth.L2BlockRef{}, eth.Bytes32{}, prog.err
	}
}

// Cursor exposes the position of the driver.
func (d *Driver) Cursor() *PipelineCursor {
	return d.cursor
}
