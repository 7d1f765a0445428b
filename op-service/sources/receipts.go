package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"golang.org/x/sync/errgroup"

	"github.com/mantlenetworkio/interop-proof/op-service/client"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/sources/caching"
)

// ReceiptsFetchingMethod selects the RPC method used to retrieve the receipts of a block.
type ReceiptsFetchingMethod string

const (
	// EthGetTransactionReceipt fetches every receipt separately with eth_getTransactionReceipt.
	EthGetTransactionReceipt ReceiptsFetchingMethod = "eth_getTransactionReceipt"
	// EthGetBlockReceipts fetches all receipts of a block with eth_getBlockReceipts.
	EthGetBlockReceipts ReceiptsFetchingMethod = "eth_getBlockReceipts"
	// DebugGetRawReceipts fetches the consensus encoding of all receipts of a block with debug_getRawReceipts.
	DebugGetRawReceipts ReceiptsFetchingMethod = "debug_getRawReceipts"
)

func (m ReceiptsFetchingMethod) String() string {
	return string(m)
}

func (m *ReceiptsFetchingMethod) Set(value string) error {
	v := ReceiptsFetchingMethod(strings.TrimSpace(value))
	if !ValidReceiptsFetchingMethod(v) {
		return fmt.Errorf("unknown receipts fetching method: %q", value)
	}
	*m = v
	return nil
}

func (m *ReceiptsFetchingMethod) Clone() any {
	cpy := *m
	return &cpy
}

// ReceiptsFetchingMethods lists the names of all supported receipts fetching methods.
func ReceiptsFetchingMethods() []string {
	return []string{string(EthGetTransactionReceipt), string(EthGetBlockReceipts), string(DebugGetRawReceipts)}
}

func ValidReceiptsFetchingMethod(m ReceiptsFetchingMethod) bool {
	switch m {
	case EthGetTransactionReceipt, EthGetBlockReceipts, DebugGetRawReceipts:
		return true
	default:
		return false
	}
}

// validateReceipts validates that the receipt contents are valid.
// Warning: contractAddress is not verified, since it is a more expensive operation for data we do not use.
func validateReceipts(block eth.BlockID, receiptHash common.Hash, txHashes []common.Hash, receipts []*types.Receipt) error {
	if len(receipts) != len(txHashes) {
		return fmt.Errorf("got %d receipts but expected %d", len(receipts), len(txHashes))
	}
	if len(txHashes) == 0 {
		if receiptHash != types.EmptyRootHash {
			return fmt.Errorf("no transactions, but got non-empty receipt trie root: %s", receiptHash)
		}
	}
	logIndex := uint(0)
	cumulativeGas := uint64(0)
	for i, r := range receipts {
		if r == nil { // on reorgs or other cases the receipts may disappear before they can be retrieved.
			return fmt.Errorf("receipt of tx %d returns nil on retrieval", i)
		}
		if r.TransactionIndex != uint(i) {
			return fmt.Errorf("receipt %d has unexpected tx index %d", i, r.TransactionIndex)
		}
		if r.BlockNumber == nil {
			return fmt.Errorf("receipt %d has unexpected nil block number, expected %d", i, block.Number)
		}
		if r.BlockNumber.Uint64() != block.Number {
			return fmt.Errorf("receipt %d has unexpected block number %d, expected %d", i, r.BlockNumber, block.Number)
		}
		if r.BlockHash != block.Hash {
			return fmt.Errorf("receipt %d has unexpected block hash %s, expected %s", i, r.BlockHash, block.Hash)
		}
		if expected := r.CumulativeGasUsed - cumulativeGas; r.GasUsed != expected {
			return fmt.Errorf("receipt %d has invalid gas used metadata: %d, expected %d", i, r.GasUsed, expected)
		}
		for j, log := range r.Logs {
			if log.Index != logIndex {
				return fmt.Errorf("log %d (%d of tx %d) has unexpected log index %d", logIndex, j, i, log.Index)
			}
			if log.TxIndex != uint(i) {
				return fmt.Errorf("log %d has unexpected tx index %d", log.Index, log.TxIndex)
			}
			if log.BlockHash != block.Hash {
				return fmt.Errorf("log %d of block %s has unexpected block hash %s", log.Index, block.Hash, log.BlockHash)
			}
			if log.BlockNumber != block.Number {
				return fmt.Errorf("log %d of block %d has unexpected block number %d", log.Index, block.Number, log.BlockNumber)
			}
			if log.TxHash != txHashes[i] {
				return fmt.Errorf("log %d of tx %s has unexpected tx hash %s", log.Index, txHashes[i], log.TxHash)
			}
			if log.Removed {
				return fmt.Errorf("canonical log (%d) must never be removed due to reorg", log.Index)
			}
			logIndex++
		}
		cumulativeGas = r.CumulativeGasUsed
	}

	// External L1-RPC sources are notorious for not returning all receipts,
	// or returning them out-of-order. Verify the receipts against the expected receipt-hash.
	hasher := trie.NewStackTrie(nil)
	computed := types.DeriveSha(types.Receipts(receipts), hasher)
	if receiptHash != computed {
		return fmt.Errorf("failed to fetch list of receipts: expected receipt root %s but computed %s from retrieved receipts", receiptHash, computed)
	}
	return nil
}

// rpcReceiptsFetcher retrieves and validates the receipts of a block.
type rpcReceiptsFetcher struct {
	client         client.RPC
	method         ReceiptsFetchingMethod
	maxConcurrency int
}

func (f *rpcReceiptsFetcher) FetchReceipts(ctx context.Context, info eth.BlockInfo, txs types.Transactions) (types.Receipts, error) {
	block := eth.ToBlockID(info)
	txHashes := eth.TransactionsToHashes(txs)
	var receipts types.Receipts
	var err error
	switch f.method {
	case EthGetBlockReceipts:
		err = f.client.CallContext(ctx, &receipts, "eth_getBlockReceipts", block.Hash)
	case DebugGetRawReceipts:
		var raw []hexutil.Bytes
		err = f.client.CallContext(ctx, &raw, "debug_getRawReceipts", block.Hash)
		if err == nil {
			receipts, err = eth.DecodeRawReceipts(block, raw, txs)
		}
	default:
		receipts, err = f.fetchEach(ctx, txHashes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipts of block %s with %s: %w", block, f.method, err)
	}
	if err := validateReceipts(block, info.ReceiptHash(), txHashes, receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (f *rpcReceiptsFetcher) fetchEach(ctx context.Context, txHashes []common.Hash) (types.Receipts, error) {
	receipts := make(types.Receipts, len(txHashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)
	for i, txHash := range txHashes {
		g.Go(func() error {
			var r *types.Receipt
			if err := f.client.CallContext(gctx, &r, "eth_getTransactionReceipt", txHash); err != nil {
				return fmt.Errorf("receipt of tx %s: %w", txHash, err)
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return receipts, nil
}

type receiptsFetcher interface {
	FetchReceipts(ctx context.Context, info eth.BlockInfo, txs types.Transactions) (types.Receipts, error)
}

// CachingReceiptsProvider caches successful receipt fetches from the inner fetcher.
// It also avoids duplicate in-flight requests per block hash.
type CachingReceiptsProvider struct {
	inner receiptsFetcher
	cache *caching.LRUCache[common.Hash, types.Receipts]

	// lock fetching process for each block hash to avoid duplicate requests
	fetching   map[common.Hash]*sync.Mutex
	fetchingMu sync.Mutex // only protects map
}

func NewCachingReceiptsProvider(inner receiptsFetcher, m caching.Metrics, cacheSize int) *CachingReceiptsProvider {
	return &CachingReceiptsProvider{
		inner:    inner,
		cache:    caching.NewLRUCache[common.Hash, types.Receipts](m, "receipts", cacheSize),
		fetching: make(map[common.Hash]*sync.Mutex),
	}
}

func (p *CachingReceiptsProvider) getOrCreateFetchingLock(blockHash common.Hash) *sync.Mutex {
	p.fetchingMu.Lock()
	defer p.fetchingMu.Unlock()
	if mu, ok := p.fetching[blockHash]; ok {
		return mu
	}
	mu := new(sync.Mutex)
	p.fetching[blockHash] = mu
	return mu
}

func (p *CachingReceiptsProvider) deleteFetchingLock(blockHash common.Hash) {
	p.fetchingMu.Lock()
	defer p.fetchingMu.Unlock()
	delete(p.fetching, blockHash)
}

func (p *CachingReceiptsProvider) FetchReceipts(ctx context.Context, info eth.BlockInfo, txs types.Transactions) (types.Receipts, error) {
	blockHash := info.Hash()
	if r, ok := p.cache.Get(blockHash); ok {
		return r, nil
	}

	mu := p.getOrCreateFetchingLock(blockHash)
	mu.Lock()
	defer mu.Unlock()
	// Other routine might have fetched in the meantime
	if r, ok := p.cache.Get(blockHash); ok {
		// we might have created a new lock above while the old
		// fetching job completed.
		p.deleteFetchingLock(blockHash)
		return r, nil
	}

	r, err := p.inner.FetchReceipts(ctx, info, txs)
	if err != nil {
		return nil, err
	}
	p.cache.Add(blockHash, r)
	// result now in cache, can delete fetching lock
	p.deleteFetchingLock(blockHash)
	return r, nil
}
