package l2

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-program/client/l2/engineapi"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/predeploys"
)

// ErrInvalidPayload marks attributes that cannot be turned into a block.
// The driver may retry such attributes with deposits only.
var ErrInvalidPayload = errors.New("invalid payload attributes")

// OracleExecutor executes derived payload attributes on top of the oracle-backed chain.
type OracleExecutor struct {
	logger log.Logger
	chain  *OracleBackedL2Chain
}

func NewOracleExecutor(logger log.Logger, chain *OracleBackedL2Chain) *OracleExecutor {
	return &OracleExecutor{logger: logger, chain: chain}
}

// Execute builds and stores the block of attrs on top of parent, and returns it with its output root.
// The canonical head is left untouched.
func (e *OracleExecutor) Execute(ctx context.Context, parent eth.L2BlockRef, attrs *eth.PayloadAttributes) (*types.Block, eth.Bytes32, error) {
	if err := ctx.Err(); err != nil {
		return nil, eth.Bytes32{}, err
	}
	processor, err := engineapi.NewBlockProcessorFromPayloadAttributes(e.chain, parent.Hash, attrs)
	if err != nil {
		return nil, eth.Bytes32{}, e.classify(fmt.Errorf("failed to start block on %s: %w", parent, err))
	}
	for i, otx := range attrs.Transactions {
		var tx types.Transaction
		if err := tx.UnmarshalBinary(otx); err != nil {
			return nil, eth.Bytes32{}, fmt.Errorf("%w: transaction %d: %w", ErrInvalidPayload, i, err)
		}
		if _, err := processor.AddTx(&tx); err != nil {
			return nil, eth.Bytes32{}, e.classify(err)
		}
	}
	block, err := e.chain.AssembleAndInsertBlockWithoutSetHead(processor)
	if err != nil {
		return nil, eth.Bytes32{}, e.classify(err)
	}
	// A failed oracle lookup may have silently changed the result of execution.
	if err := e.chain.Err(); err != nil {
		return nil, eth.Bytes32{}, fmt.Errorf("chain data unavailable while executing block %d: %w", block.NumberU64(), err)
	}
	output, err := e.OutputAtBlockHash(block.Hash())
	if err != nil {
		return nil, eth.Bytes32{}, err
	}
	e.logger.Info("Executed L2 block", "number", block.NumberU64(), "hash", block.Hash(), "txs", len(attrs.Transactions))
	return block, eth.OutputRoot(output), nil
}

// classify separates oracle failures, which are fatal, from execution failures of the payload.
func (e *OracleExecutor) classify(err error) error {
	if chainErr := e.chain.Err(); chainErr != nil {
		return fmt.Errorf("%w (chain data unavailable: %w)", err, chainErr)
	}
	return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
}

// OutputAtBlockHash computes the V0 output of a known block, from the storage root of the message passer.
func (e *OracleExecutor) OutputAtBlockHash(blockHash common.Hash) (*eth.OutputV0, error) {
	header := e.chain.GetHeaderByHash(blockHash)
	if header == nil {
		if err := e.chain.Err(); err != nil {
			return nil, fmt.Errorf("header %s: %w", blockHash, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, blockHash)
	}
	stateDB, err := e.chain.StateAt(header.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open L2 state db at block %s: %w", blockHash, err)
	}
	withdrawalsTrie, err := stateDB.OpenStorageTrie(predeploys.L2ToL1MessagePasserAddr)
	if err != nil {
		return nil, fmt.Errorf("withdrawals trie unavailable at block %v: %w", blockHash, err)
	}
	return &eth.OutputV0{
		StateRoot:                eth.Bytes32(header.Root),
		MessagePasserStorageRoot: eth.Bytes32(withdrawalsTrie.Hash()),
		BlockHash:                blockHash,
	}, nil
}
