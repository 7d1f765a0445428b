package l1

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	ErrNotFound = ethereum.NotFound
	// ErrBlockNumberPastHead is a not-found error: the L1 head bounds all data available to the program.
	ErrBlockNumberPastHead = fmt.Errorf("block number past L1 head: %w", ethereum.NotFound)
)

// OracleL1Client serves L1 data from the oracle.
// Blocks are looked up by number by walking back from the agreed L1 head.
type OracleL1Client struct {
	logger               log.Logger
	oracle               Oracle
	head                 eth.L1BlockRef
	hashByNum            map[uint64]common.Hash
	earliestIndexedBlock eth.L1BlockRef
}

func NewOracleL1Client(logger log.Logger, oracle Oracle, l1Head common.Hash) (*OracleL1Client, error) {
	info, err := oracle.HeaderByBlockHash(l1Head)
	if err != nil {
		return nil, fmt.Errorf("failed to load L1 head %s: %w", l1Head, err)
	}
	head := eth.InfoToL1BlockRef(info)
	logger.Info("L1 head loaded", "hash", head.Hash, "number", head.Number)
	return &OracleL1Client{
		logger:               logger,
		oracle:               oracle,
		head:                 head,
		hashByNum:            map[uint64]common.Hash{head.Number: head.Hash},
		earliestIndexedBlock: head,
	}, nil
}

// Head returns the agreed L1 head. It is unchanging, and serves as unsafe, safe and finalized head.
func (o *OracleL1Client) Head() eth.L1BlockRef {
	return o.head
}

func (o *OracleL1Client) L1BlockRefByNumber(ctx context.Context, number uint64) (eth.L1BlockRef, error) {
	if number > o.head.Number {
		return eth.L1BlockRef{}, fmt.Errorf("%w: block number %d", ErrBlockNumberPastHead, number)
	}
	hash, ok := o.hashByNum[number]
	if ok {
		return o.L1BlockRefByHash(ctx, hash)
	}
	block := o.earliestIndexedBlock
	o.logger.Info("Extending block by number lookup", "from", block.Number, "to", number)
	for block.Number > number {
		info, err := o.oracle.HeaderByBlockHash(block.ParentHash)
		if err != nil {
			return eth.L1BlockRef{}, fmt.Errorf("failed to walk back to block %d: %w", number, err)
		}
		block = eth.InfoToL1BlockRef(info)
		o.hashByNum[block.Number] = block.Hash
		o.earliestIndexedBlock = block
	}
	return block, nil
}

func (o *OracleL1Client) L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	info, err := o.oracle.HeaderByBlockHash(hash)
	if err != nil {
		return eth.L1BlockRef{}, err
	}
	return eth.InfoToL1BlockRef(info), nil
}

func (o *OracleL1Client) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	return o.oracle.HeaderByBlockHash(hash)
}

func (o *OracleL1Client) FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	return o.oracle.ReceiptsByBlockHash(blockHash)
}

func (o *OracleL1Client) InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	return o.oracle.TransactionsByBlockHash(hash)
}
