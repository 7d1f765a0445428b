// Package pipeline runs the derivation pipeline against live L1 and L2 RPC endpoints.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/metrics/metered"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-node/rollup/derive"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// ErrDerivationMismatch is returned when derived attributes disagree with the canonical L2 chain.
var ErrDerivationMismatch = errors.New("derived attributes do not match canonical block")

// L2Source is the canonical L2 chain, plus block contents for comparison against derived attributes.
type L2Source interface {
	derive.L2Source
	InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error)
}

// DerivedBlock is the attributes derived on top of a safe head, and the canonical block they were checked against.
type DerivedBlock struct {
	Attributes *derive.AttributesWithParent
	Canonical  eth.L2BlockRef
}

// OnlinePipeline derives L2 blocks from L1 data served over RPC, on top of the canonical L2 chain.
type OnlinePipeline struct {
	derive.Pipeline

	logger   log.Logger
	l2       L2Source
	safeHead eth.L2BlockRef
}

// NewOnlinePipeline creates the pipeline and resets it to derive on top of the canonical L2 block at startNum.
func NewOnlinePipeline(
	ctx context.Context,
	logger log.Logger,
	cfg *rollup.Config,
	l1ChainConfig *params.ChainConfig,
	l1Source metered.L1Fetcher,
	l1Blobs derive.L1BlobsFetcher,
	l2Source L2Source,
	metrics derive.Metrics,
	startNum uint64,
) (*OnlinePipeline, error) {
	safeHead, err := l2Source.L2BlockRefByNumber(ctx, startNum)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch starting L2 block %d: %w", startNum, err)
	}
	origin, err := l1Source.L1BlockRefByHash(ctx, safeHead.L1Origin.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch L1 origin %s of L2 block %s: %w", safeHead.L1Origin, safeHead, err)
	}
	dp, err := derive.NewResetDerivationPipeline(ctx, logger, cfg, l1ChainConfig, l1Source, l1Blobs, l2Source, metrics, safeHead, origin)
	if err != nil {
		return nil, err
	}
	return newOnlinePipeline(logger, dp, l2Source, safeHead), nil
}

func newOnlinePipeline(logger log.Logger, p derive.Pipeline, l2Source L2Source, safeHead eth.L2BlockRef) *OnlinePipeline {
	return &OnlinePipeline{
		Pipeline: p,
		logger:   logger,
		l2:       l2Source,
		safeHead: safeHead,
	}
}

// SafeHead is the block the next attributes are derived on top of.
func (p *OnlinePipeline) SafeHead() eth.L2BlockRef {
	return p.safeHead
}

// DeriveNext derives the attributes of the block after the safe head, checks them against the
// canonical L2 block at that height, and advances the safe head to it.
func (p *OnlinePipeline) DeriveNext(ctx context.Context) (*DerivedBlock, error) {
	attrs, err := derive.ProducePayload(ctx, p.logger, p.Pipeline, p.safeHead)
	if err != nil {
		return nil, err
	}
	if attrs.Parent != p.safeHead {
		return nil, fmt.Errorf("%w: attributes built on %s instead of safe head %s", ErrDerivationMismatch, attrs.Parent, p.safeHead)
	}
	canonical, err := p.l2.L2BlockRefByNumber(ctx, p.safeHead.Number+1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch canonical L2 block %d: %w", p.safeHead.Number+1, err)
	}
	if err := p.checkCanonical(ctx, attrs.Attributes, canonical); err != nil {
		return nil, err
	}
	p.logger.Info("Derived block", "block", canonical, "l1_origin", canonical.L1Origin, "derived_from", attrs.DerivedFrom)
	p.safeHead = canonical
	return &DerivedBlock{Attributes: attrs, Canonical: canonical}, nil
}

func (p *OnlinePipeline) checkCanonical(ctx context.Context, attrs *eth.PayloadAttributes, canonical eth.L2BlockRef) error {
	if canonical.ParentHash != p.safeHead.Hash {
		return fmt.Errorf("%w: canonical block %s does not build on safe head %s", ErrDerivationMismatch, canonical, p.safeHead)
	}
	if uint64(attrs.Timestamp) != canonical.Time {
		return fmt.Errorf("%w: timestamp %d, canonical block %s has %d", ErrDerivationMismatch, uint64(attrs.Timestamp), canonical, canonical.Time)
	}
	_, txs, err := p.l2.InfoAndTxsByHash(ctx, canonical.Hash)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions of canonical block %s: %w", canonical, err)
	}
	return compareTransactions(attrs, txs)
}

// compareTransactions checks the forced transactions of the attributes against the start of the block.
// With NoTxPool the block must contain no other transactions.
func compareTransactions(attrs *eth.PayloadAttributes, txs types.Transactions) error {
	if len(txs) < len(attrs.Transactions) || (attrs.NoTxPool && len(txs) != len(attrs.Transactions)) {
		return fmt.Errorf("%w: %d derived transactions, canonical block has %d", ErrDerivationMismatch, len(attrs.Transactions), len(txs))
	}
	for i, data := range attrs.Transactions {
		enc, err := txs[i].MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to encode canonical transaction %d: %w", i, err)
		}
		if !bytes.Equal(enc, data) {
			return fmt.Errorf("%w: transaction %d differs from canonical %s", ErrDerivationMismatch, i, txs[i].Hash())
		}
	}
	return nil
}
