package l2

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus"
	"github.com/ethereum/go-ethereum/consensus/beacon"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/mantlenetworkio/interop-proof/op-program/client/l2/engineapi"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var (
	ErrUnsupportedL2Output = errors.New("unsupported l2 output version")
	ErrUnknownBlock        = errors.New("unknown block")
)

// OracleBackedL2Chain is the L2 chain as seen by block execution: the agreed safe head and its
// ancestors are read through the oracle, blocks built on top of it are kept in memory.
//
// The go-ethereum chain interfaces cannot return errors, so the first oracle failure is recorded
// and reported by Err.
type OracleBackedL2Chain struct {
	log      log.Logger
	oracle   Oracle
	chainCfg *params.ChainConfig
	chainID  eth.ChainID
	engine   consensus.Engine
	vmCfg    vm.Config

	precompiles *engineapi.OraclePrecompiles

	// oracleHead is the agreed safe head. Anything above it can only come from inserted blocks.
	oracleHead *types.Header
	head       *types.Header

	// canonical hashes, indexed down to earliestIndexed
	hashByNum       map[uint64]common.Hash
	earliestIndexed *types.Header

	// Inserted blocks
	blocks map[common.Hash]*types.Block
	// Receipts of inserted blocks
	receiptsByBlockHash map[common.Hash]types.Receipts
	db                  ethdb.KeyValueStore

	err error
}

var _ engineapi.BlockDataProvider = (*OracleBackedL2Chain)(nil)

// NewOracleBackedL2Chain loads the block committed to by the given output root and uses it as head.
func NewOracleBackedL2Chain(
	logger log.Logger,
	oracle Oracle,
	precompileOracle engineapi.PrecompileOracle,
	chainCfg *params.ChainConfig,
	l2OutputRoot common.Hash,
	db KeyValueStore,
) (*OracleBackedL2Chain, error) {
	chainID := eth.ChainIDFromBig(chainCfg.ChainID)
	output, err := oracle.OutputByRoot(l2OutputRoot, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreed output root %s: %w", l2OutputRoot, err)
	}
	outputV0, ok := output.(*eth.OutputV0)
	if !ok {
		return nil, fmt.Errorf("%w: version: %d", ErrUnsupportedL2Output, output.Version())
	}
	head, err := oracle.BlockByHash(outputV0.BlockHash, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agreed L2 head %s: %w", outputV0.BlockHash, err)
	}
	logger.Info("Loaded L2 head", "hash", head.Hash(), "number", head.Number())
	return NewOracleBackedL2ChainFromHead(logger, oracle, precompileOracle, chainCfg, head, db), nil
}

func NewOracleBackedL2ChainFromHead(
	logger log.Logger,
	oracle Oracle,
	precompileOracle engineapi.PrecompileOracle,
	chainCfg *params.ChainConfig,
	head *types.Block,
	db KeyValueStore,
) *OracleBackedL2Chain {
	chainID := eth.ChainIDFromBig(chainCfg.ChainID)
	chain := &OracleBackedL2Chain{
		log:                 logger,
		oracle:              oracle,
		chainCfg:            chainCfg,
		chainID:             chainID,
		engine:              beacon.New(nil),
		oracleHead:          head.Header(),
		head:                head.Header(),
		hashByNum:           map[uint64]common.Hash{head.NumberU64(): head.Hash()},
		earliestIndexed:     head.Header(),
		blocks:              make(map[common.Hash]*types.Block),
		receiptsByBlockHash: make(map[common.Hash]types.Receipts),
		db:                  NewOracleBackedDB(db, oracle, chainID),
	}
	if precompileOracle != nil {
		chain.precompiles = engineapi.NewOraclePrecompiles(precompileOracle)
		chain.vmCfg.PrecompileOverrides = chain.precompiles.Overrides()
	}
	// The head itself is always served from memory.
	chain.blocks[head.Hash()] = head
	return chain
}

// Err returns the first oracle failure hit while serving chain data, if any.
func (o *OracleBackedL2Chain) Err() error {
	if o.err != nil {
		return o.err
	}
	if o.precompiles != nil {
		return o.precompiles.Err()
	}
	return nil
}

func (o *OracleBackedL2Chain) fail(err error) {
	if o.err == nil {
		o.err = err
		o.log.Error("L2 chain data unavailable", "err", err)
	}
}

func (o *OracleBackedL2Chain) ChainID() eth.ChainID {
	return o.chainID
}

func (o *OracleBackedL2Chain) CurrentHeader() *types.Header {
	return o.head
}

// GetHeaderByNumber walks back from the current head to the requested block number
func (o *OracleBackedL2Chain) GetHeaderByNumber(n uint64) *types.Header {
	if o.head.Number.Uint64() < n {
		return nil
	}
	if o.earliestIndexed.Number.Uint64() <= n {
		hash, ok := o.hashByNum[n]
		if !ok {
			o.fail(fmt.Errorf("block %d was not indexed while the earliest indexed block is %d", n, o.earliestIndexed.Number))
			return nil
		}
		return o.GetHeaderByHash(hash)
	}
	h := o.earliestIndexed
	for h.Number.Uint64() > n {
		parent := o.GetHeaderByHash(h.ParentHash)
		if parent == nil {
			return nil
		}
		o.hashByNum[parent.Number.Uint64()] = h.ParentHash
		h = parent
	}
	o.earliestIndexed = h
	return h
}

// SetCanonical makes the given block the head, and re-indexes canonical hashes until the
// new chain connects with the previously indexed one.
func (o *OracleBackedL2Chain) SetCanonical(head *types.Block) (common.Hash, error) {
	if _, ok := o.blocks[head.Hash()]; !ok && head.NumberU64() > o.oracleHead.Number.Uint64() {
		return common.Hash{}, fmt.Errorf("%w: cannot make %s canonical", ErrUnknownBlock, head.Hash())
	}
	oldHead := o.head
	o.head = head.Header()
	for n := o.head.Number.Uint64() + 1; n <= oldHead.Number.Uint64(); n++ {
		delete(o.hashByNum, n)
	}
	h := o.head
	for {
		hash := h.Hash()
		if prev, ok := o.hashByNum[h.Number.Uint64()]; ok && prev == hash {
			break
		}
		o.hashByNum[h.Number.Uint64()] = hash
		if h.Number.Uint64() == 0 {
			break
		}
		parent := o.GetHeaderByHash(h.ParentHash)
		if parent == nil {
			return common.Hash{}, fmt.Errorf("failed to index parent of %s: %w", hash, o.err)
		}
		h = parent
	}
	if h.Number.Cmp(o.earliestIndexed.Number) < 0 {
		o.earliestIndexed = h
	}
	return o.head.Hash(), nil
}

func (o *OracleBackedL2Chain) GetTd(hash common.Hash, number uint64) *big.Int {
	// Difficulty is always 0 post-merge and bedrock starts post-merge so total difficulty also always 0
	return common.Big0
}

func (o *OracleBackedL2Chain) GetHeaderByHash(hash common.Hash) *types.Header {
	block := o.GetBlockByHash(hash)
	if block == nil {
		return nil
	}
	return block.Header()
}

func (o *OracleBackedL2Chain) GetBlockByHash(hash common.Hash) *types.Block {
	if block, ok := o.blocks[hash]; ok {
		return block
	}
	block, err := o.oracle.BlockByHash(hash, o.chainID)
	if err != nil {
		o.fail(fmt.Errorf("block %s: %w", hash, err))
		return nil
	}
	return block
}

func (o *OracleBackedL2Chain) GetBlock(hash common.Hash, number uint64) *types.Block {
	var block *types.Block
	if o.oracleHead.Number.Uint64() < number {
		// Blocks above the agreed head can only have been built locally.
		block = o.blocks[hash]
	} else {
		block = o.GetBlockByHash(hash)
	}
	if block == nil || block.NumberU64() != number {
		return nil
	}
	return block
}

func (o *OracleBackedL2Chain) GetHeader(hash common.Hash, number uint64) *types.Header {
	block := o.GetBlock(hash, number)
	if block == nil {
		return nil
	}
	return block.Header()
}

func (o *OracleBackedL2Chain) HasBlockAndState(hash common.Hash, number uint64) bool {
	return o.GetBlock(hash, number) != nil
}

func (o *OracleBackedL2Chain) GetCanonicalHash(n uint64) common.Hash {
	header := o.GetHeaderByNumber(n)
	if header == nil {
		return common.Hash{}
	}
	return header.Hash()
}

func (o *OracleBackedL2Chain) GetReceiptsByBlockHash(hash common.Hash) types.Receipts {
	if receipts, ok := o.receiptsByBlockHash[hash]; ok {
		return receipts
	}
	_, receipts, err := o.oracle.ReceiptsByBlockHash(hash, o.chainID)
	if err != nil {
		o.fail(fmt.Errorf("receipts of %s: %w", hash, err))
		return nil
	}
	return receipts
}

func (o *OracleBackedL2Chain) GetVMConfig() *vm.Config {
	return &o.vmCfg
}

func (o *OracleBackedL2Chain) Config() *params.ChainConfig {
	return o.chainCfg
}

func (o *OracleBackedL2Chain) Engine() consensus.Engine {
	return o.engine
}

func (o *OracleBackedL2Chain) StateAt(root common.Hash) (*state.StateDB, error) {
	stateDB, err := state.New(root, state.NewDatabase(triedb.NewDatabase(rawdb.NewDatabase(o.db), nil), nil))
	if err != nil {
		return nil, err
	}
	stateDB.MakeSinglethreaded()
	return stateDB, nil
}

// AssembleAndInsertBlockWithoutSetHead seals the block of the processor and keeps it, and its
// receipts, without changing the head.
func (o *OracleBackedL2Chain) AssembleAndInsertBlockWithoutSetHead(processor *engineapi.BlockProcessor) (*types.Block, error) {
	block, receipts, err := processor.Assemble()
	if err != nil {
		return nil, fmt.Errorf("invalid block: %w", err)
	}
	if err := processor.Commit(); err != nil {
		return nil, fmt.Errorf("commit block: %w", err)
	}
	o.blocks[block.Hash()] = block
	o.receiptsByBlockHash[block.Hash()] = receipts
	return block, nil
}
