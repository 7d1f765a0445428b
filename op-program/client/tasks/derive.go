package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantlenetworkio/interop-proof/op-node/metrics"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-program/client/driver"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l1"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
	"github.com/mantlenetworkio/interop-proof/op-program/client/mpt"
	"github.com/mantlenetworkio/interop-proof/op-program/client/pipeline"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type DerivationResult struct {
	Head       eth.L2BlockRef
	BlockHash  common.Hash
	OutputRoot eth.Bytes32
}

type DerivationOptions struct {
	// StoreBlockData controls whether block data, including intermediate trie nodes from transactions and receipts
	// of the derived block should be stored in the l2.KeyValueStore.
	StoreBlockData bool
}

// Derivation holds the oracle-backed providers of one chain, bound to its agreed safe head.
type Derivation struct {
	logger        log.Logger
	cfg           *rollup.Config
	l1ChainConfig *params.ChainConfig
	outputRoot    eth.Bytes32
	db            l2.KeyValueStore

	l1Source *l1.OracleL1Client
	l1Blobs  *l1.BlobFetcher
	chain    *l2.OracleBackedL2Chain
	l2Source *l2.OracleL2ChainProvider
	executor *l2.OracleExecutor
}

// NewDerivation constructs the L1, blob and L2 providers. The L2 chain starts at the block
// committed to by l2OutputRoot.
func NewDerivation(
	logger log.Logger,
	cfg *rollup.Config,
	l1ChainConfig *params.ChainConfig,
	l2Cfg *params.ChainConfig,
	l1Head common.Hash,
	l2OutputRoot common.Hash,
	l1Oracle l1.Oracle,
	l2Oracle l2.Oracle,
	db l2.KeyValueStore,
) (*Derivation, error) {
	l1Source, err := l1.NewOracleL1Client(logger, l1Oracle, l1Head)
	if err != nil {
		return nil, err
	}
	chain, err := l2.NewOracleBackedL2Chain(logger, l2Oracle, l1Oracle, l2Cfg, l2OutputRoot, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle-backed L2 chain: %w", err)
	}
	return &Derivation{
		logger:        logger,
		cfg:           cfg,
		l1ChainConfig: l1ChainConfig,
		outputRoot:    eth.Bytes32(l2OutputRoot),
		db:            db,
		l1Source:      l1Source,
		l1Blobs:       l1.NewBlobFetcher(logger, l1Oracle),
		chain:         chain,
		l2Source:      l2.NewOracleL2ChainProvider(logger, cfg, chain),
		executor:      l2.NewOracleExecutor(logger, chain),
	}, nil
}

// SafeHead is the header of the agreed L2 safe head.
func (d *Derivation) SafeHead() *types.Header {
	return d.chain.CurrentHeader()
}

// Run derives and executes blocks until l2ClaimBlockNum is the safe head.
// If the L1 data runs out first, the error wraps driver.ErrExhausted and the result is the
// last derived safe head.
func (d *Derivation) Run(ctx context.Context, l2ClaimBlockNum uint64, options DerivationOptions) (DerivationResult, error) {
	cursor, err := driver.NewPipelineCursor(ctx, d.logger, d.cfg, d.chain.CurrentHeader(), d.outputRoot, d.l1Source, d.l2Source)
	if err != nil {
		return DerivationResult{}, fmt.Errorf("failed to create pipeline cursor: %w", err)
	}
	p, err := pipeline.NewOraclePipeline(ctx, d.logger, d.cfg, d.l1ChainConfig, cursor, d.l1Source, d.l1Blobs, d.l2Source, metrics.NoopMetrics)
	if err != nil {
		return DerivationResult{}, err
	}

	d.logger.Info("Starting derivation", "chainID", d.cfg.L2ChainID, "safe_head", cursor.Tip().SafeHead, "target", l2ClaimBlockNum)
	head, outputRoot, err := driver.NewDriver(d.logger, p, d.executor, d.l2Source, cursor).AdvanceToTarget(ctx, l2ClaimBlockNum)
	result := DerivationResult{Head: head, BlockHash: head.Hash, OutputRoot: outputRoot}
	if errors.Is(err, driver.ErrExhausted) {
		return result, err
	} else if err != nil {
		return DerivationResult{}, fmt.Errorf("failed to run program to completion: %w", err)
	}
	d.logger.Info("Derivation complete", "head", head, "output_root", outputRoot)

	if options.StoreBlockData {
		if err := storeBlockData(head.Hash, d.db, d.chain); err != nil {
			return DerivationResult{}, fmt.Errorf("failed to write trie nodes: %w", err)
		}
		d.logger.Info("Trie nodes written")
	}
	return result, nil
}

// RunDerivation executes the L2 state transition, given a minimal interface to retrieve data.
// Returns the L2BlockRef of the safe head reached and its output root.
func RunDerivation(
	ctx context.Context,
	logger log.Logger,
	cfg *rollup.Config,
	l1ChainConfig *params.ChainConfig,
	l2Cfg *params.ChainConfig,
	l1Head common.Hash,
	l2OutputRoot common.Hash,
	l2ClaimBlockNum uint64,
	l1Oracle l1.Oracle,
	l2Oracle l2.Oracle,
	db l2.KeyValueStore,
	options DerivationOptions) (DerivationResult, error) {
	d, err := NewDerivation(logger, cfg, l1ChainConfig, l2Cfg, l1Head, l2OutputRoot, l1Oracle, l2Oracle, db)
	if err != nil {
		return DerivationResult{}, err
	}
	return d.Run(ctx, l2ClaimBlockNum, options)
}

type blockDataSource interface {
	GetBlockByHash(hash common.Hash) *types.Block
	GetReceiptsByBlockHash(hash common.Hash) types.Receipts
}

func storeBlockData(derivedBlockHash common.Hash, db l2.KeyValueStore, backend blockDataSource) error {
	block := backend.GetBlockByHash(derivedBlockHash)
	if block == nil {
		return fmt.Errorf("%w: derived block %v is missing", ethereum.NotFound, derivedBlockHash)
	}
	headerRLP, err := rlp.EncodeToBytes(block.Header())
	if err != nil {
		return fmt.Errorf("failed to encode block header: %w", err)
	}
	blockHashKey := preimage.Keccak256Key(derivedBlockHash).PreimageKey()
	if err := db.Put(blockHashKey[:], headerRLP); err != nil {
		return fmt.Errorf("failed to store block header: %w", err)
	}

	opaqueTxs, err := eth.EncodeTransactions(block.Transactions())
	if err != nil {
		return err
	}
	if err := storeTrieNodes(opaqueTxs, db); err != nil {
		return err
	}
	receipts := backend.GetReceiptsByBlockHash(block.Hash())
	if receipts == nil {
		return fmt.Errorf("%w: receipts for block %v are missing", ethereum.NotFound, block.Hash())
	}
	opaqueReceipts, err := eth.EncodeReceipts(receipts)
	if err != nil {
		return err
	}
	return storeTrieNodes(opaqueReceipts, db)
}

func storeTrieNodes(values []hexutil.Bytes, db l2.KeyValueStore) error {
	_, nodes := mpt.WriteTrie(values)
	for _, node := range nodes {
		key := preimage.Keccak256Key(crypto.Keccak256Hash(node)).PreimageKey()
		if err := db.Put(key[:], node); err != nil {
			return fmt.Errorf("failed to store node: %w", err)
		}
	}
	return nil
}
