package l1

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// Cache size is quite high as derivation may need to walk back a full sequencing window
// and channel timeout worth of L1 blocks.
const cacheSize = 2000

// CachingOracle is an implementation of Oracle that delegates to another implementation, adding caching of all results.
type CachingOracle struct {
	oracle Oracle
	blocks *simplelru.LRU[common.Hash, eth.BlockInfo]
	txs    *simplelru.LRU[common.Hash, types.Transactions]
	rcpts  *simplelru.LRU[common.Hash, types.Receipts]
	blobs  *simplelru.LRU[common.Hash, *eth.Blob]
	pcmps  *simplelru.LRU[common.Hash, precompileResult]
}

type precompileResult struct {
	result []byte
	ok     bool
}

func NewCachingOracle(oracle Oracle) *CachingOracle {
	blockLRU, _ := simplelru.NewLRU[common.Hash, eth.BlockInfo](cacheSize, nil)
	txsLRU, _ := simplelru.NewLRU[common.Hash, types.Transactions](cacheSize, nil)
	rcptsLRU, _ := simplelru.NewLRU[common.Hash, types.Receipts](cacheSize, nil)
	blobsLRU, _ := simplelru.NewLRU[common.Hash, *eth.Blob](cacheSize, nil)
	pcmpsLRU, _ := simplelru.NewLRU[common.Hash, precompileResult](cacheSize, nil)
	return &CachingOracle{
		oracle: oracle,
		blocks: blockLRU,
		txs:    txsLRU,
		rcpts:  rcptsLRU,
		blobs:  blobsLRU,
		pcmps:  pcmpsLRU,
	}
}

func (o *CachingOracle) HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error) {
	block, ok := o.blocks.Get(blockHash)
	if ok {
		return block, nil
	}
	block, err := o.oracle.HeaderByBlockHash(blockHash)
	if err != nil {
		return nil, err
	}
	o.blocks.Add(blockHash, block)
	return block, nil
}

func (o *CachingOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	txs, ok := o.txs.Get(blockHash)
	if ok {
		block, err := o.HeaderByBlockHash(blockHash)
		if err != nil {
			return nil, nil, err
		}
		return block, txs, nil
	}
	block, txs, err := o.oracle.TransactionsByBlockHash(blockHash)
	if err != nil {
		return nil, nil, err
	}
	o.blocks.Add(blockHash, block)
	o.txs.Add(blockHash, txs)
	return block, txs, nil
}

func (o *CachingOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	rcpts, ok := o.rcpts.Get(blockHash)
	if ok {
		block, err := o.HeaderByBlockHash(blockHash)
		if err != nil {
			return nil, nil, err
		}
		return block, rcpts, nil
	}
	block, rcpts, err := o.oracle.ReceiptsByBlockHash(blockHash)
	if err != nil {
		return nil, nil, err
	}
	o.blocks.Add(blockHash, block)
	o.rcpts.Add(blockHash, rcpts)
	return block, rcpts, nil
}

func (o *CachingOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error) {
	// Create a 32 byte hash key by hashing `blobHash.Hash ++ ref.Time ++ blobHash.Index`
	hashBuf := make([]byte, 48)
	copy(hashBuf[0:32], blobHash.Hash[:])
	binary.BigEndian.PutUint64(hashBuf[32:], ref.Time)
	binary.BigEndian.PutUint64(hashBuf[40:], blobHash.Index)
	cacheKey := crypto.Keccak256Hash(hashBuf)

	blob, ok := o.blobs.Get(cacheKey)
	if ok {
		return blob, nil
	}
	blob, err := o.oracle.GetBlob(ref, blobHash)
	if err != nil {
		return nil, err
	}
	o.blobs.Add(cacheKey, blob)
	return blob, nil
}

func (o *CachingOracle) Precompile(address common.Address, input []byte, requiredGas uint64) ([]byte, bool, error) {
	cacheKey := crypto.Keccak256Hash(append(append(address.Bytes(), binary.BigEndian.AppendUint64(nil, requiredGas)...), input...))
	if val, ok := o.pcmps.Get(cacheKey); ok {
		return val.result, val.ok, nil
	}
	res, ok, err := o.oracle.Precompile(address, input, requiredGas)
	if err != nil {
		return nil, false, err
	}
	o.pcmps.Add(cacheKey, precompileResult{res, ok})
	return res, ok, nil
}
