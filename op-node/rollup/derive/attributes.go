package derive

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/predeploys"
)

// L1ReceiptsFetcher fetches L1 header info and receipts for the payload attributes derivation (the info tx and deposits)
type L1ReceiptsFetcher interface {
	InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error)
	FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error)
}

type SystemConfigL2Fetcher interface {
	SystemConfigByL2Hash(ctx context.Context, hash common.Hash) (eth.SystemConfig, error)
}

// FetchingAttributesBuilder builds the deposit part of the payload attributes of the next safe
// block, fetching the L1 origin and the parent's system config as needed.
type FetchingAttributesBuilder struct {
	rollupCfg     *rollup.Config
	l1ChainConfig *params.ChainConfig
	l1            L1ReceiptsFetcher
	l2            SystemConfigL2Fetcher
}

func NewFetchingAttributesBuilder(rollupCfg *rollup.Config, l1ChainConfig *params.ChainConfig, l1 L1ReceiptsFetcher, l2 SystemConfigL2Fetcher) *FetchingAttributesBuilder {
	return &FetchingAttributesBuilder{
		rollupCfg:     rollupCfg,
		l1ChainConfig: l1ChainConfig,
		l1:            l1,
		l2:            l2,
	}
}

// epochInputs is what the L1 origin contributes to an L2 block.
type epochInputs struct {
	info      eth.BlockInfo
	deposits  []hexutil.Bytes
	seqNumber uint64
}

// PreparePayloadAttributes returns deposit-only attributes for the block after l2Parent, with
// epoch as L1 origin. The L1 info deposit comes first, then the user deposits of a new epoch.
// Batch transactions are appended by the caller.
//
// Temporary errors are failed fetches. Reset errors mean the epoch does not fit on the parent.
// Critical errors mean the L1 data itself is malformed.
func (ba *FetchingAttributesBuilder) PreparePayloadAttributes(ctx context.Context, l2Parent eth.L2BlockRef, epoch eth.BlockID) (*eth.PayloadAttributes, error) {
	sysConfig, err := ba.l2.SystemConfigByL2Hash(ctx, l2Parent.Hash)
	if err != nil {
		return nil, NewTemporaryError(fmt.Errorf("failed to retrieve L2 parent block: %w", err))
	}

	var in epochInputs
	if l2Parent.L1Origin.Number != epoch.Number {
		in, err = ba.newEpoch(ctx, l2Parent, epoch, &sysConfig)
	} else {
		in, err = ba.sameEpoch(ctx, l2Parent, epoch)
	}
	if err != nil {
		return nil, err
	}

	nextL2Time := l2Parent.Time + ba.rollupCfg.BlockTime
	// L2 time may never fall behind the time of its L1 origin.
	if nextL2Time < in.info.Time() {
		return nil, NewResetError(fmt.Errorf("cannot build L2 block on top %s for time %d before L1 origin %s at time %d",
			l2Parent, nextL2Time, eth.ToBlockID(in.info), in.info.Time()))
	}

	l1InfoTx, err := L1InfoDepositBytes(ba.rollupCfg, ba.l1ChainConfig, sysConfig, in.seqNumber, in.info, nextL2Time)
	if err != nil {
		return nil, NewCriticalError(fmt.Errorf("failed to create l1InfoTx: %w", err))
	}
	txs := make([]hexutil.Bytes, 0, 1+len(in.deposits))
	txs = append(txs, l1InfoTx)
	txs = append(txs, in.deposits...)

	attrs := &eth.PayloadAttributes{
		Timestamp:             hexutil.Uint64(nextL2Time),
		PrevRandao:            eth.Bytes32(in.info.MixDigest()),
		SuggestedFeeRecipient: predeploys.SequencerFeeVaultAddr,
		Transactions:          txs,
		NoTxPool:              true,
		GasLimit:              (*eth.Uint64Quantity)(&sysConfig.GasLimit),
	}
	ba.applyForks(attrs, in.info, sysConfig)
	return attrs, nil
}

// newEpoch reads the deposits and system config updates of the first block of an epoch.
func (ba *FetchingAttributesBuilder) newEpoch(ctx context.Context, l2Parent eth.L2BlockRef, epoch eth.BlockID, sysConfig *eth.SystemConfig) (epochInputs, error) {
	info, receipts, err := ba.l1.FetchReceipts(ctx, epoch.Hash)
	if err != nil {
		return epochInputs{}, NewTemporaryError(fmt.Errorf("failed to fetch L1 block info and receipts: %w", err))
	}
	if l2Parent.L1Origin.Hash != info.ParentHash() {
		return epochInputs{}, NewResetError(
			fmt.Errorf("cannot create new block with L1 origin %s (parent %s) on top of L1 origin %s",
				epoch, info.ParentHash(), l2Parent.L1Origin))
	}
	// Deposits may never be skipped, so failing to read them is critical.
	deposits, err := DeriveDeposits(receipts, ba.rollupCfg.DepositContractAddress)
	if err != nil {
		return epochInputs{}, NewCriticalError(fmt.Errorf("failed to derive some deposits: %w", err))
	}
	if err := UpdateSystemConfigWithL1Receipts(sysConfig, receipts, ba.rollupCfg, info.Time()); err != nil {
		return epochInputs{}, NewCriticalError(fmt.Errorf("failed to apply derived L1 sysCfg updates: %w", err))
	}
	return epochInputs{info: info, deposits: deposits}, nil
}

func (ba *FetchingAttributesBuilder) sameEpoch(ctx context.Context, l2Parent eth.L2BlockRef, epoch eth.BlockID) (epochInputs, error) {
	if l2Parent.L1Origin.Hash != epoch.Hash {
		return epochInputs{}, NewResetError(fmt.Errorf("cannot create new block with L1 origin %s in conflict with L1 origin %s", epoch, l2Parent.L1Origin))
	}
	info, err := ba.l1.InfoByHash(ctx, epoch.Hash)
	if err != nil {
		return epochInputs{}, NewTemporaryError(fmt.Errorf("failed to fetch L1 block info: %w", err))
	}
	return epochInputs{info: info, seqNumber: l2Parent.SequenceNumber + 1}, nil
}

// applyForks sets the attribute fields that later forks add to the block header.
func (ba *FetchingAttributesBuilder) applyForks(attrs *eth.PayloadAttributes, l1Info eth.BlockInfo, sysConfig eth.SystemConfig) {
	l2Time := uint64(attrs.Timestamp)
	if ba.rollupCfg.IsCanyon(l2Time) {
		attrs.Withdrawals = &types.Withdrawals{}
	}
	if ba.rollupCfg.IsEcotone(l2Time) {
		attrs.ParentBeaconBlockRoot = l1Info.ParentBeaconRoot()
		if attrs.ParentBeaconBlockRoot == nil {
			attrs.ParentBeaconBlockRoot = new(common.Hash)
		}
	}
	if ba.rollupCfg.IsHolocene(l2Time) {
		eip1559 := sysConfig.EIP1559Params
		attrs.EIP1559Params = &eip1559
	}
}
