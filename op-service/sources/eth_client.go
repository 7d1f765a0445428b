// Package sources exports the clients used to access ethereum chain data over RPC.
//
// [L1Client] wraps an RPC client to retrieve L1 ethereum data.
// [L2Client] wraps an RPC client to retrieve L2 blocks and the rollup data they carry.
// [L1BeaconClient] retrieves blobs from a beacon node.
//
// Internally, the L1 and L2 clients wrap an [EthClient] which itself wraps a specified RPC client.
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/mantlenetworkio/interop-proof/op-service/client"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/sources/caching"
)

type EthClientConfig struct {
	// limit concurrent requests, applies to the source as a whole
	MaxConcurrentRequests int

	// cache sizes

	// Number of blocks worth of receipts to cache
	ReceiptsCacheSize int
	// Number of blocks worth of transactions to cache
	TransactionsCacheSize int
	// Number of block headers to cache
	HeadersCacheSize int

	BlockRefsCacheSize int

	// If the RPC is untrusted, then we should not use cached information from responses,
	// and instead verify against the block-hash.
	TrustRPC bool

	ReceiptsMethod ReceiptsFetchingMethod
}

// DefaultEthClientConfig creates a new eth client config,
// with caching of data using the given cache-size (in number of blocks).
func DefaultEthClientConfig(cacheSize int) *EthClientConfig {
	return &EthClientConfig{
		ReceiptsCacheSize:     cacheSize,
		TransactionsCacheSize: cacheSize,
		HeadersCacheSize:      cacheSize,
		BlockRefsCacheSize:    cacheSize,
		MaxConcurrentRequests: 10,
		TrustRPC:              false,
		ReceiptsMethod:        EthGetBlockReceipts,
	}
}

func (c *EthClientConfig) Check() error {
	if c.ReceiptsCacheSize < 1 {
		return fmt.Errorf("invalid receipts cache size: %d", c.ReceiptsCacheSize)
	}
	if c.TransactionsCacheSize < 1 {
		return fmt.Errorf("invalid transactions cache size: %d", c.TransactionsCacheSize)
	}
	if c.HeadersCacheSize < 1 {
		return fmt.Errorf("invalid headers cache size: %d", c.HeadersCacheSize)
	}
	if c.BlockRefsCacheSize < 1 {
		return fmt.Errorf("invalid blockrefs cache size: %d", c.BlockRefsCacheSize)
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("expected at least 1 concurrent request, but max is %d", c.MaxConcurrentRequests)
	}
	if !ValidReceiptsFetchingMethod(c.ReceiptsMethod) {
		return fmt.Errorf("unknown receipts fetching method: %q", c.ReceiptsMethod)
	}
	return nil
}

// EthClient retrieves ethereum data with cached results, and flag to not trust the RPC.
type EthClient struct {
	client client.RPC

	recProvider *CachingReceiptsProvider

	trustRPC bool

	log log.Logger

	// cache transactions in bundles per block hash
	transactionsCache *caching.LRUCache[common.Hash, types.Transactions]

	// cache block headers of blocks by hash
	headersCache *caching.LRUCache[common.Hash, eth.BlockInfo]

	// cache block references by hash
	blockRefsCache *caching.LRUCache[common.Hash, eth.L1BlockRef]
}

// NewEthClient returns an [EthClient], wrapping an RPC with bindings to fetch ethereum data with added error logging,
// metric tracking, and caching. The [EthClient] uses a [LimitRPC] wrapper to limit the number of concurrent RPC requests.
func NewEthClient(rpcClient client.RPC, log log.Logger, metrics caching.Metrics, config *EthClientConfig) (*EthClient, error) {
	if err := config.Check(); err != nil {
		return nil, fmt.Errorf("bad config, cannot create eth client: %w", err)
	}
	rpcClient = client.NewLimitRPC(rpcClient, config.MaxConcurrentRequests)
	fetcher := &rpcReceiptsFetcher{
		client:         rpcClient,
		method:         config.ReceiptsMethod,
		maxConcurrency: config.MaxConcurrentRequests,
	}
	return &EthClient{
		client:            rpcClient,
		recProvider:       NewCachingReceiptsProvider(fetcher, metrics, config.ReceiptsCacheSize),
		trustRPC:          config.TrustRPC,
		log:               log,
		transactionsCache: caching.NewLRUCache[common.Hash, types.Transactions](metrics, "txs", config.TransactionsCacheSize),
		headersCache:      caching.NewLRUCache[common.Hash, eth.BlockInfo](metrics, "headers", config.HeadersCacheSize),
		blockRefsCache:    caching.NewLRUCache[common.Hash, eth.L1BlockRef](metrics, "blockrefs", config.BlockRefsCacheSize),
	}, nil
}

// rpcBlockID is an internal type to enforce header and block call results match the requested identifier
type rpcBlockID interface {
	// Arg translates the object into an RPC argument
	Arg() any
	// CheckID verifies a block/header result matches the requested block identifier
	CheckID(id eth.BlockID) error
}

// hashID implements rpcBlockID for safe block-by-hash fetching
type hashID common.Hash

func (h hashID) Arg() any { return common.Hash(h) }
func (h hashID) CheckID(id eth.BlockID) error {
	if common.Hash(h) != id.Hash {
		return fmt.Errorf("expected block hash %s but got block %s", common.Hash(h), id)
	}
	return nil
}

// numberID implements rpcBlockID for safe block-by-number fetching
type numberID uint64

func (n numberID) Arg() any { return hexutil.EncodeUint64(uint64(n)) }
func (n numberID) CheckID(id eth.BlockID) error {
	if uint64(n) != id.Number {
		return fmt.Errorf("expected block number %d but got block %s", uint64(n), id)
	}
	return nil
}

// rpcHeader is a header as served by eth_getBlockBy*, with the hash claimed by the RPC.
type rpcHeader struct {
	Hash   common.Hash
	Header *types.Header
}

func (h *rpcHeader) UnmarshalJSON(data []byte) error {
	var claimed struct {
		Hash common.Hash `json:"hash"`
	}
	if err := json.Unmarshal(data, &claimed); err != nil {
		return err
	}
	header := new(types.Header)
	if err := json.Unmarshal(data, header); err != nil {
		return err
	}
	h.Hash = claimed.Hash
	h.Header = header
	return nil
}

// Info returns the header as block info, verifying the claimed block hash unless the RPC is trusted.
func (h *rpcHeader) Info(trustRPC bool) (eth.BlockInfo, error) {
	if trustRPC {
		return eth.HeaderBlockInfoTrusted(h.Hash, h.Header), nil
	}
	if computed := h.Header.Hash(); computed != h.Hash {
		return nil, fmt.Errorf("failed to verify block hash: computed %s but RPC said %s", computed, h.Hash)
	}
	return eth.HeaderBlockInfo(h.Header), nil
}

// rpcBlock is a block with full transactions as served by eth_getBlockBy*.
type rpcBlock struct {
	rpcHeader
	Transactions types.Transactions
}

func (b *rpcBlock) UnmarshalJSON(data []byte) error {
	if err := b.rpcHeader.UnmarshalJSON(data); err != nil {
		return err
	}
	var body struct {
		Transactions types.Transactions `json:"transactions"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	b.Transactions = body.Transactions
	return nil
}

func (b *rpcBlock) Info(trustRPC bool) (eth.BlockInfo, types.Transactions, error) {
	info, err := b.rpcHeader.Info(trustRPC)
	if err != nil {
		return nil, nil, err
	}
	if !trustRPC {
		computed := types.DeriveSha(b.Transactions, trie.NewStackTrie(nil))
		if expected := b.Header.TxHash; computed != expected {
			return nil, nil, fmt.Errorf("failed to verify transactions list: computed %s but header has %s", computed, expected)
		}
	}
	return info, b.Transactions, nil
}

var nullResult = []byte("null")

func (s *EthClient) call(ctx context.Context, result any, method string, id rpcBlockID, fullTxs bool) (bool, error) {
	var raw json.RawMessage
	if err := s.client.CallContext(ctx, &raw, method, id.Arg(), fullTxs); err != nil {
		return false, eth.MaybeAsNotFoundErr(err)
	}
	if len(raw) == 0 || bytes.Equal(raw, nullResult) {
		return false, nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return false, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return true, nil
}

func (s *EthClient) headerCall(ctx context.Context, method string, id rpcBlockID) (eth.BlockInfo, error) {
	var header rpcHeader
	if ok, err := s.call(ctx, &header, method, id, false); err != nil {
		return nil, err
	} else if !ok {
		return nil, ethereum.NotFound
	}
	info, err := header.Info(s.trustRPC)
	if err != nil {
		return nil, err
	}
	if err := id.CheckID(eth.ToBlockID(info)); err != nil {
		return nil, fmt.Errorf("fetched block header does not match requested ID: %w", err)
	}
	s.headersCache.Add(info.Hash(), info)
	return info, nil
}

func (s *EthClient) fetchBlock(ctx context.Context, method string, id rpcBlockID) (*rpcBlock, eth.BlockInfo, error) {
	var block rpcBlock
	if ok, err := s.call(ctx, &block, method, id, true); err != nil {
		return nil, nil, err
	} else if !ok {
		return nil, nil, ethereum.NotFound
	}
	info, txs, err := block.Info(s.trustRPC)
	if err != nil {
		return nil, nil, err
	}
	if err := id.CheckID(eth.ToBlockID(info)); err != nil {
		return nil, nil, fmt.Errorf("fetched block data does not match requested ID: %w", err)
	}
	s.headersCache.Add(info.Hash(), info)
	s.transactionsCache.Add(info.Hash(), txs)
	return &block, info, nil
}

func (s *EthClient) blockCall(ctx context.Context, method string, id rpcBlockID) (eth.BlockInfo, types.Transactions, error) {
	block, info, err := s.fetchBlock(ctx, method, id)
	if err != nil {
		return nil, nil, err
	}
	return info, block.Transactions, nil
}

func (s *EthClient) fullBlockCall(ctx context.Context, method string, id rpcBlockID) (*types.Block, error) {
	block, _, err := s.fetchBlock(ctx, method, id)
	if err != nil {
		return nil, err
	}
	return types.NewBlockWithHeader(block.Header).WithBody(types.Body{Transactions: block.Transactions}), nil
}

// BlockByHash returns the full block with the given hash.
func (s *EthClient) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	return s.fullBlockCall(ctx, "eth_getBlockByHash", hashID(hash))
}

// BlockByNumber returns the full canonical block at the given height.
func (s *EthClient) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	return s.fullBlockCall(ctx, "eth_getBlockByNumber", numberID(number))
}

// ChainID fetches the chain id of the internal RPC.
func (s *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	err := s.client.CallContext(ctx, &id, "eth_chainId")
	if err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}

func (s *EthClient) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	if header, ok := s.headersCache.Get(hash); ok {
		return header, nil
	}
	return s.headerCall(ctx, "eth_getBlockByHash", hashID(hash))
}

func (s *EthClient) InfoByNumber(ctx context.Context, number uint64) (eth.BlockInfo, error) {
	// can't hit the cache when querying by number due to reorgs.
	return s.headerCall(ctx, "eth_getBlockByNumber", numberID(number))
}

func (s *EthClient) InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	if header, ok := s.headersCache.Get(hash); ok {
		if txs, ok := s.transactionsCache.Get(hash); ok {
			return header, txs, nil
		}
	}
	return s.blockCall(ctx, "eth_getBlockByHash", hashID(hash))
}

func (s *EthClient) InfoAndTxsByNumber(ctx context.Context, number uint64) (eth.BlockInfo, types.Transactions, error) {
	// can't hit the cache when querying by number due to reorgs.
	return s.blockCall(ctx, "eth_getBlockByNumber", numberID(number))
}

// FetchReceipts returns a block info and all of the receipts associated with transactions in the block.
// The receipts are verified against the receipts root of the block header.
func (s *EthClient) FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	info, txs, err := s.InfoAndTxsByHash(ctx, blockHash)
	if err != nil {
		return nil, nil, fmt.Errorf("querying block: %w", err)
	}
	receipts, err := s.recProvider.FetchReceipts(ctx, info, txs)
	if err != nil {
		return nil, nil, err
	}
	return info, receipts, nil
}

// BlockRefByNumber returns an [eth.L1BlockRef] for the given block number.
// Notice, we cannot cache a block reference by number because L1 re-orgs can invalidate the cached block reference.
func (s *EthClient) BlockRefByNumber(ctx context.Context, num uint64) (eth.L1BlockRef, error) {
	info, err := s.InfoByNumber(ctx, num)
	if err != nil {
		return eth.L1BlockRef{}, fmt.Errorf("failed to fetch header by num %d: %w", num, err)
	}
	ref := eth.InfoToL1BlockRef(info)
	s.blockRefsCache.Add(ref.Hash, ref)
	return ref, nil
}

// BlockRefByHash returns the [eth.L1BlockRef] for the given block hash.
// We cache the block reference by hash as it is safe to assume collision will not occur.
func (s *EthClient) BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	if v, ok := s.blockRefsCache.Get(hash); ok {
		return v, nil
	}
	info, err := s.InfoByHash(ctx, hash)
	if err != nil {
		return eth.L1BlockRef{}, fmt.Errorf("failed to fetch header by hash %v: %w", hash, err)
	}
	ref := eth.InfoToL1BlockRef(info)
	s.blockRefsCache.Add(ref.Hash, ref)
	return ref, nil
}

func (s *EthClient) Close() {
	s.client.Close()
}
