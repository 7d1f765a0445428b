package l2

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// blockCacheSize should be set large enough to handle the pipeline reset process of walking back from L2 head to find
// the L1 origin that is old enough to start buffering channel data from.
const blockCacheSize = 3_000
const nodeCacheSize = 100_000
const codeCacheSize = 10_000
const receiptsCacheSize = 100

// CachingOracle is an implementation of Oracle that delegates to another implementation, adding caching of all results.
// Failed lookups are not cached.
type CachingOracle struct {
	oracle  Oracle
	blocks  *simplelru.LRU[common.Hash, *types.Block]
	nodes   *simplelru.LRU[common.Hash, []byte]
	rcpts   *simplelru.LRU[common.Hash, types.Receipts]
	codes   *simplelru.LRU[common.Hash, []byte]
	outputs *simplelru.LRU[common.Hash, eth.Output]
}

var _ Oracle = (*CachingOracle)(nil)

func NewCachingOracle(oracle Oracle) *CachingOracle {
	blockLRU, _ := simplelru.NewLRU[common.Hash, *types.Block](blockCacheSize, nil)
	nodeLRU, _ := simplelru.NewLRU[common.Hash, []byte](nodeCacheSize, nil)
	rcptsLRU, _ := simplelru.NewLRU[common.Hash, types.Receipts](receiptsCacheSize, nil)
	codeLRU, _ := simplelru.NewLRU[common.Hash, []byte](codeCacheSize, nil)
	outputLRU, _ := simplelru.NewLRU[common.Hash, eth.Output](codeCacheSize, nil)
	return &CachingOracle{
		oracle:  oracle,
		blocks:  blockLRU,
		rcpts:   rcptsLRU,
		nodes:   nodeLRU,
		codes:   codeLRU,
		outputs: outputLRU,
	}
}

func (o *CachingOracle) NodeByHash(nodeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if node, ok := o.nodes.Get(nodeHash); ok {
		return node, nil
	}
	node, err := o.oracle.NodeByHash(nodeHash, chainID)
	if err != nil {
		return nil, err
	}
	o.nodes.Add(nodeHash, node)
	return node, nil
}

func (o *CachingOracle) ReceiptsByBlockHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, types.Receipts, error) {
	if rcpts, ok := o.rcpts.Get(blockHash); ok {
		block, err := o.BlockByHash(blockHash, chainID)
		if err != nil {
			return nil, nil, err
		}
		return block, rcpts, nil
	}
	block, rcpts, err := o.oracle.ReceiptsByBlockHash(blockHash, chainID)
	if err != nil {
		return nil, nil, err
	}
	o.blocks.Add(blockHash, block)
	o.rcpts.Add(blockHash, rcpts)
	return block, rcpts, nil
}

func (o *CachingOracle) CodeByHash(codeHash common.Hash, chainID eth.ChainID) ([]byte, error) {
	if code, ok := o.codes.Get(codeHash); ok {
		return code, nil
	}
	code, err := o.oracle.CodeByHash(codeHash, chainID)
	if err != nil {
		return nil, err
	}
	o.codes.Add(codeHash, code)
	return code, nil
}

func (o *CachingOracle) BlockByHash(blockHash common.Hash, chainID eth.ChainID) (*types.Block, error) {
	if block, ok := o.blocks.Get(blockHash); ok {
		return block, nil
	}
	block, err := o.oracle.BlockByHash(blockHash, chainID)
	if err != nil {
		return nil, err
	}
	o.blocks.Add(blockHash, block)
	return block, nil
}

func (o *CachingOracle) OutputByRoot(root common.Hash, chainID eth.ChainID) (eth.Output, error) {
	if output, ok := o.outputs.Get(root); ok {
		return output, nil
	}
	output, err := o.oracle.OutputByRoot(root, chainID)
	if err != nil {
		return nil, err
	}
	o.outputs.Add(root, output)
	return output, nil
}
