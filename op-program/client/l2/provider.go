package l2

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// OracleL2ChainProvider serves the L2 view of the derivation pipeline from the oracle-backed chain.
// Its canonical chain follows the cursor: every block inserted by the executor is moved to with SetCursor.
type OracleL2ChainProvider struct {
	logger    log.Logger
	rollupCfg *rollup.Config
	chain     *OracleBackedL2Chain
}

var _ derive.L2Source = (*OracleL2ChainProvider)(nil)

func NewOracleL2ChainProvider(logger log.Logger, rollupCfg *rollup.Config, chain *OracleBackedL2Chain) *OracleL2ChainProvider {
	return &OracleL2ChainProvider{
		logger:    logger,
		rollupCfg: rollupCfg,
		chain:     chain,
	}
}

func (p *OracleL2ChainProvider) Chain() *OracleBackedL2Chain {
	return p.chain
}

// SetCursor moves the canonical head to the given block, which must be known to the chain.
func (p *OracleL2ChainProvider) SetCursor(ref eth.L2BlockRef) error {
	block := p.chain.GetBlockByHash(ref.Hash)
	if block == nil {
		return fmt.Errorf("cursor %s: %w", ref, p.missing("block", ref.Hash))
	}
	if _, err := p.chain.SetCanonical(block); err != nil {
		return fmt.Errorf("failed to move cursor to %s: %w", ref, err)
	}
	p.logger.Debug("Moved L2 cursor", "head", ref)
	return nil
}

func (p *OracleL2ChainProvider) HeaderByHash(_ context.Context, hash common.Hash) (*types.Header, error) {
	header := p.chain.GetHeaderByHash(hash)
	if header == nil {
		return nil, p.missing("header", hash)
	}
	return header, nil
}

func (p *OracleL2ChainProvider) BlockByHash(_ context.Context, hash common.Hash) (*types.Block, error) {
	block := p.chain.GetBlockByHash(hash)
	if block == nil {
		return nil, p.missing("block", hash)
	}
	return block, nil
}

func (p *OracleL2ChainProvider) L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error) {
	block, err := p.BlockByHash(ctx, hash)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	return derive.L2BlockToBlockRef(p.rollupCfg, block)
}

func (p *OracleL2ChainProvider) L2BlockRefByNumber(ctx context.Context, num uint64) (eth.L2BlockRef, error) {
	block, err := p.canonicalBlock(num)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	return derive.L2BlockToBlockRef(p.rollupCfg, block)
}

func (p *OracleL2ChainProvider) SystemConfigByL2Hash(ctx context.Context, hash common.Hash) (eth.SystemConfig, error) {
	block, err := p.BlockByHash(ctx, hash)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	return derive.BlockToSystemConfig(p.rollupCfg, block)
}

func (p *OracleL2ChainProvider) SystemConfigByNumber(ctx context.Context, num uint64) (eth.SystemConfig, error) {
	block, err := p.canonicalBlock(num)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	return derive.BlockToSystemConfig(p.rollupCfg, block)
}

func (p *OracleL2ChainProvider) canonicalBlock(num uint64) (*types.Block, error) {
	header := p.chain.GetHeaderByNumber(num)
	if header == nil {
		if err := p.chain.Err(); err != nil {
			return nil, fmt.Errorf("block %d: %w", num, err)
		}
		return nil, fmt.Errorf("%w: block %d is above the cursor %d", ErrUnknownBlock, num, p.chain.CurrentHeader().Number)
	}
	block := p.chain.GetBlockByHash(header.Hash())
	if block == nil {
		return nil, p.missing("block", header.Hash())
	}
	return block, nil
}

func (p *OracleL2ChainProvider) missing(kind string, hash common.Hash) error {
	if err := p.chain.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", kind, hash, err)
	}
	return fmt.Errorf("%w: %s %s", ErrUnknownBlock, kind, hash)
}
