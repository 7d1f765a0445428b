package sources

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-service/client"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/sources/caching"
)

type L2ClientConfig struct {
	EthClientConfig

	L2BlockRefsCacheSize int
	L1ConfigsCacheSize   int

	RollupCfg *rollup.Config
}

func L2ClientDefaultConfig(config *rollup.Config, trustRPC bool) *L2ClientConfig {
	// Cache 3/2 worth of sequencing window of payloads, block references, receipts and txs
	span := int(config.SeqWindowSize) * 3 / 2
	// Estimate number of L2 blocks in this span of L1 blocks
	// (there's always one L2 block per L1 block, L1 is thus the minimum, even if block time is very high)
	if config.BlockTime < 12 && config.BlockTime > 0 {
		span *= 12
		span /= int(config.BlockTime)
	}
	fullSpan := span
	if span > 1000 { // sanity cap. If a large sequencing window is configured, do not make the cache too large
		span = 1000
	}
	return &L2ClientConfig{
		EthClientConfig: EthClientConfig{
			// receipts and transactions are cached per block
			ReceiptsCacheSize:     span,
			TransactionsCacheSize: span,
			HeadersCacheSize:      span,
			BlockRefsCacheSize:    span,
			MaxConcurrentRequests: 10,
			TrustRPC:              trustRPC,
			ReceiptsMethod:        EthGetBlockReceipts,
		},
		// Not bounded by span, to cover find-sync-start range fully for speedy recovery after errors.
		L2BlockRefsCacheSize: fullSpan,
		L1ConfigsCacheSize:   span,
		RollupCfg:            config,
	}
}

// L2Client extends EthClient with functions to fetch L2 block references and the system config
// that L2 blocks were derived with.
type L2Client struct {
	*EthClient
	rollupCfg *rollup.Config

	// cache L2BlockRef by hash
	l2BlockRefsCache *caching.LRUCache[common.Hash, eth.L2BlockRef]

	// cache SystemConfig by L2 hash
	systemConfigsCache *caching.LRUCache[common.Hash, eth.SystemConfig]
}

var _ derive.L2Source = (*L2Client)(nil)

// NewL2Client constructs a new L2Client instance. The L2Client is a thin wrapper around the EthClient with added functions
// for fetching and caching eth.L2BlockRef values. This includes fetching an L2BlockRef by block number, label, or hash.
func NewL2Client(client client.RPC, log log.Logger, metrics caching.Metrics, config *L2ClientConfig) (*L2Client, error) {
	if config.RollupCfg == nil {
		return nil, fmt.Errorf("bad config, cannot create L2 client: missing rollup config")
	}
	ethClient, err := NewEthClient(client, log, metrics, &config.EthClientConfig)
	if err != nil {
		return nil, err
	}

	return &L2Client{
		EthClient:          ethClient,
		rollupCfg:          config.RollupCfg,
		l2BlockRefsCache:   caching.NewLRUCache[common.Hash, eth.L2BlockRef](metrics, "l2blockrefs", config.L2BlockRefsCacheSize),
		systemConfigsCache: caching.NewLRUCache[common.Hash, eth.SystemConfig](metrics, "systemconfigs", config.L1ConfigsCacheSize),
	}, nil
}

func (s *L2Client) RollupConfig() *rollup.Config {
	return s.rollupCfg
}

func (s *L2Client) blockToRef(block *types.Block) (eth.L2BlockRef, error) {
	ref, err := derive.L2BlockToBlockRef(s.rollupCfg, block)
	if err != nil {
		return eth.L2BlockRef{}, fmt.Errorf("failed to determine block reference of %s: %w", block.Hash(), err)
	}
	s.l2BlockRefsCache.Add(ref.Hash, ref)
	return ref, nil
}

// L2BlockRefByNumber returns the [eth.L2BlockRef] for the given block number.
func (s *L2Client) L2BlockRefByNumber(ctx context.Context, num uint64) (eth.L2BlockRef, error) {
	block, err := s.BlockByNumber(ctx, num)
	if err != nil {
		return eth.L2BlockRef{}, fmt.Errorf("failed to determine L2BlockRef of height %v, could not get block: %w", num, err)
	}
	return s.blockToRef(block)
}

// L2BlockRefByHash returns the [eth.L2BlockRef] for the given block hash.
// The returned BlockRef may not be in the canonical chain.
func (s *L2Client) L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error) {
	if ref, ok := s.l2BlockRefsCache.Get(hash); ok {
		return ref, nil
	}
	block, err := s.BlockByHash(ctx, hash)
	if err != nil {
		return eth.L2BlockRef{}, fmt.Errorf("failed to determine block-hash of hash %v, could not get block: %w", hash, err)
	}
	return s.blockToRef(block)
}

// SystemConfigByL2Hash returns the [eth.SystemConfig] (matching the config updates up to and including the L1 origin) for the given L2 block hash.
// The returned [eth.SystemConfig] may not be in the canonical chain when the hash is not canonical.
func (s *L2Client) SystemConfigByL2Hash(ctx context.Context, hash common.Hash) (eth.SystemConfig, error) {
	if cfg, ok := s.systemConfigsCache.Get(hash); ok {
		return cfg, nil
	}
	block, err := s.BlockByHash(ctx, hash)
	if err != nil {
		return eth.SystemConfig{}, fmt.Errorf("failed to determine block-hash of hash %v, could not get block: %w", hash, err)
	}
	return s.blockToSystemConfig(block)
}

// SystemConfigByNumber returns the [eth.SystemConfig] that the canonical L2 block at the given height was derived with.
func (s *L2Client) SystemConfigByNumber(ctx context.Context, num uint64) (eth.SystemConfig, error) {
	block, err := s.BlockByNumber(ctx, num)
	if err != nil {
		return eth.SystemConfig{}, fmt.Errorf("failed to determine system config of height %v, could not get block: %w", num, err)
	}
	return s.blockToSystemConfig(block)
}

func (s *L2Client) blockToSystemConfig(block *types.Block) (eth.SystemConfig, error) {
	cfg, err := derive.BlockToSystemConfig(s.rollupCfg, block)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	s.systemConfigsCache.Add(block.Hash(), cfg)
	return cfg, nil
}
