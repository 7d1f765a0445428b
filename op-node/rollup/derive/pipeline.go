package derive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type L1Fetcher interface {
	L1BlockRefByNumber(context.Context, uint64) (eth.L1BlockRef, error)
	L1ReceiptsFetcher
	L1TransactionFetcher
}

type L2Source interface {
	L2BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L2BlockRef, error)
	L2BlockRefByNumber(ctx context.Context, num uint64) (eth.L2BlockRef, error)
	SystemConfigL2Fetcher
	SystemConfigByNumber(ctx context.Context, num uint64) (eth.SystemConfig, error)
}

type ResettableStage interface {
	// Reset resets a pull stage. `base` refers to the L1 Block Reference to reset to, with corresponding configuration.
	Reset(ctx context.Context, base eth.L1BlockRef, baseCfg eth.SystemConfig) error
}

type ChannelFlusher interface {
	FlushChannel()
}

// Pipeline is the derivation pipeline as seen by a driver.
type Pipeline interface {
	Origin() eth.L1BlockRef
	Peek() *AttributesWithParent
	Next() *AttributesWithParent
	Step(ctx context.Context, cursor eth.L2BlockRef) StepResult
	Signal(ctx context.Context, signal Signal) error
	SystemConfigByNumber(ctx context.Context, num uint64) (eth.SystemConfig, error)
	RollupConfig() *rollup.Config
}

// DerivationPipeline is updated with new L1 data, and the Step() function can be iterated on to generate attributes
type DerivationPipeline struct {
	log       log.Logger
	rollupCfg *rollup.Config
	l2        L2Source

	stages []ResettableStage

	// Special stages to keep track of
	traversal *L1Traversal
	attrib    *AttributesQueue

	// attributes produced by Step, and not yet consumed through Next
	prepared []*AttributesWithParent

	metrics Metrics
}

var _ Pipeline = (*DerivationPipeline)(nil)

// NewDerivationPipeline creates a DerivationPipeline, to turn L1 data into L2 block-inputs.
// The pipeline has no origin until it receives a ResetSignal.
func NewDerivationPipeline(log log.Logger, rollupCfg *rollup.Config, l1ChainConfig *params.ChainConfig, l1Fetcher L1Fetcher, l1Blobs L1BlobsFetcher,
	l2Source L2Source, metrics Metrics) *DerivationPipeline {
	spec := rollup.NewChainSpec(rollupCfg)
	// Pull stages
	l1Traversal := NewL1Traversal(log, rollupCfg, l1Fetcher)
	dataSrc := NewDataSourceFactory(log, rollupCfg, l1Fetcher, l1Blobs)
	l1Src := NewL1Retrieval(log, dataSrc, l1Traversal)
	frameQueue := NewFrameQueue(log, rollupCfg, l1Src)
	bank := NewChannelBank(log, spec, frameQueue, metrics)
	chInReader := NewChannelInReader(rollupCfg, log, bank, metrics)
	batchQueue := NewBatchQueue(log, rollupCfg, chInReader)
	attrBuilder := NewFetchingAttributesBuilder(rollupCfg, l1ChainConfig, l1Fetcher, l2Source)
	attributesQueue := NewAttributesQueue(log, rollupCfg, attrBuilder, batchQueue)

	// Reset up from L1 Traversal. The stages do not talk to each other during the reset,
	// but after it this is the order in which the stages could talk to each other.
	stages := []ResettableStage{l1Traversal, l1Src, frameQueue, bank, chInReader, batchQueue, attributesQueue}

	return &DerivationPipeline{
		log:       log,
		rollupCfg: rollupCfg,
		l2:        l2Source,
		stages:    stages,
		traversal: l1Traversal,
		attrib:    attributesQueue,
		metrics:   metrics,
	}
}

// Origin is the L1 block of the inner-most stage of the derivation pipeline,
// i.e. the L1 chain up to and including this point included and/or produced all the safe L2 blocks.
func (dp *DerivationPipeline) Origin() eth.L1BlockRef {
	return dp.attrib.Origin()
}

// Peek returns the next prepared attributes without consuming them, or nil if there are none.
func (dp *DerivationPipeline) Peek() *AttributesWithParent {
	if len(dp.prepared) == 0 {
		return nil
	}
	return dp.prepared[0]
}

// Next consumes the next prepared attributes, or returns nil if there are none.
func (dp *DerivationPipeline) Next() *AttributesWithParent {
	if len(dp.prepared) == 0 {
		return nil
	}
	next := dp.prepared[0]
	dp.prepared = dp.prepared[1:]
	return next
}

func (dp *DerivationPipeline) RollupConfig() *rollup.Config {
	return dp.rollupCfg
}

// SystemConfigByNumber returns the system config that is effective at the given L2 block.
func (dp *DerivationPipeline) SystemConfigByNumber(ctx context.Context, num uint64) (eth.SystemConfig, error) {
	return dp.l2.SystemConfigByNumber(ctx, num)
}

// Signal delivers a signal to every stage of the pipeline.
func (dp *DerivationPipeline) Signal(ctx context.Context, signal Signal) error {
	switch s := signal.(type) {
	case ResetSignal:
		dp.log.Info("Resetting derivation pipeline", "l2_safe_head", s.L2SafeHead, "l1_origin", s.L1Origin)
		return dp.resetStages(ctx, s.L1Origin, s.SystemConfig)
	case ActivationSignal:
		dp.log.Info("Activating hardfork in derivation pipeline", "l2_safe_head", s.L2SafeHead, "l1_origin", s.L1Origin)
		return dp.resetStages(ctx, s.L1Origin, s.SystemConfig)
	case FlushChannelSignal:
		dp.log.Info("Flushing channel data of derivation pipeline")
		dp.attrib.FlushChannel()
		return nil
	default:
		return fmt.Errorf("unknown pipeline signal: %T", signal)
	}
}

func (dp *DerivationPipeline) resetStages(ctx context.Context, base eth.L1BlockRef, sysCfg eth.SystemConfig) error {
	dp.prepared = dp.prepared[:0]
	for i, stage := range dp.stages {
		if err := stage.Reset(ctx, base, sysCfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stage %d failed resetting: %w", i, err)
		}
	}
	dp.metrics.RecordL1Ref("l1_derived", base)
	return nil
}

// Step tries to progress the derivation pipeline by a single unit, on top of the given cursor.
// Produced attributes are kept until they are taken with Next.
func (dp *DerivationPipeline) Step(ctx context.Context, cursor eth.L2BlockRef) StepResult {
	prevOrigin := dp.Origin()
	attrib, err := dp.attrib.NextAttributes(ctx, cursor)
	if err == nil {
		dp.prepared = append(dp.prepared, attrib)
		dp.metrics.RecordDerivedAttributes(len(attrib.Attributes.Transactions))
		return StepResult{Kind: PreparedAttributes}
	}
	if err != io.EOF {
		return StepResult{Kind: StepFailed, Err: err}
	}
	// Every stage returned io.EOF: try to advance the L1 origin.
	if err := dp.traversal.AdvanceL1Block(ctx); err == io.EOF {
		return StepResult{Kind: OriginAdvanceErr, Err: NewCriticalError(ErrEndOfSource)}
	} else if err != nil {
		return StepResult{Kind: OriginAdvanceErr, Err: err}
	}
	if origin := dp.Origin(); origin != prevOrigin {
		dp.metrics.RecordL1Ref("l1_derived", origin)
	}
	return StepResult{Kind: AdvancedOrigin}
}

// NewResetDerivationPipeline creates a DerivationPipeline and resets it to derive on top of
// safeHead, reading L1 from origin, with the system config of the safe head.
func NewResetDerivationPipeline(ctx context.Context, log log.Logger, rollupCfg *rollup.Config, l1ChainConfig *params.ChainConfig,
	l1Fetcher L1Fetcher, l1Blobs L1BlobsFetcher, l2Source L2Source, metrics Metrics,
	safeHead eth.L2BlockRef, origin eth.L1BlockRef) (*DerivationPipeline, error) {
	sysCfg, err := l2Source.SystemConfigByNumber(ctx, safeHead.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system config of safe head %s: %w", safeHead, err)
	}
	dp := NewDerivationPipeline(log, rollupCfg, l1ChainConfig, l1Fetcher, l1Blobs, l2Source, metrics)
	if err := dp.Signal(ctx, ResetSignal{L2SafeHead: safeHead, L1Origin: origin, SystemConfig: sysCfg}); err != nil {
		return nil, fmt.Errorf("failed to reset derivation pipeline: %w", err)
	}
	return dp, nil
}
