package engineapi

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/predeploys"
)

var (
	ErrExceedsGasLimit  = errors.New("tx gas exceeds block gas limit")
	ErrUsesTooMuchGas   = errors.New("action takes too much gas")
	ErrMissingGasLimit  = errors.New("payload attributes without gas limit")
	errInvalidGasLimit  = errors.New("invalid gas limit")
	errInvalidTimestamp = errors.New("invalid timestamp")
	errUnknownParent    = errors.New("unknown parent block")
)

type BlockDataProvider interface {
	StateAt(root common.Hash) (*state.StateDB, error)
	GetHeader(common.Hash, uint64) *types.Header
	Engine() consensus.Engine
	GetVMConfig() *vm.Config
	Config() *params.ChainConfig
	consensus.ChainHeaderReader
}

// BlockProcessor applies transactions one by one on top of a parent state
// and seals the result into a block.
type BlockProcessor struct {
	header       *types.Header
	state        *state.StateDB
	receipts     types.Receipts
	transactions types.Transactions
	gasPool      *core.GasPool
	dataProvider BlockDataProvider
	evm          *vm.EVM
}

func NewBlockProcessorFromPayloadAttributes(provider BlockDataProvider, parent common.Hash, attrs *eth.PayloadAttributes) (*BlockProcessor, error) {
	if attrs.GasLimit == nil {
		return nil, ErrMissingGasLimit
	}
	header := &types.Header{
		ParentHash:       parent,
		Coinbase:         attrs.SuggestedFeeRecipient,
		Difficulty:       common.Big0,
		GasLimit:         uint64(*attrs.GasLimit),
		Time:             uint64(attrs.Timestamp),
		Extra:            nil,
		MixDigest:        common.Hash(attrs.PrevRandao),
		Nonce:            types.EncodeNonce(0),
		ParentBeaconRoot: attrs.ParentBeaconBlockRoot,
	}
	if attrs.Withdrawals != nil {
		header.WithdrawalsHash = &types.EmptyWithdrawalsHash
	}
	if attrs.EIP1559Params != nil {
		d, e := eip1559.DecodeHolocene1559Params(attrs.EIP1559Params[:])
		if d == 0 {
			d = provider.Config().BaseFeeChangeDenominator(header.Time)
			e = provider.Config().ElasticityMultiplier()
		}
		if provider.Config().IsOptimismHolocene(header.Time) {
			header.Extra = eip1559.EncodeOptimismExtraData(provider.Config(), header.Time, d, e, nil)
		}
	}

	return NewBlockProcessorFromHeader(provider, header)
}

func NewBlockProcessorFromHeader(provider BlockDataProvider, h *types.Header) (*BlockProcessor, error) {
	header := types.CopyHeader(h) // Copy to avoid mutating the original header

	if header.GasLimit > params.MaxGasLimit {
		return nil, fmt.Errorf("%w: have %v, max %v", errInvalidGasLimit, header.GasLimit, params.MaxGasLimit)
	}
	parentHeader := provider.GetHeaderByHash(header.ParentHash)
	if parentHeader == nil {
		return nil, fmt.Errorf("%w: %s", errUnknownParent, header.ParentHash)
	}
	if header.Time <= parentHeader.Time {
		return nil, errInvalidTimestamp
	}
	statedb, err := provider.StateAt(parentHeader.Root)
	if err != nil {
		return nil, fmt.Errorf("get parent state: %w", err)
	}
	header.Number = new(big.Int).Add(parentHeader.Number, common.Big1)
	header.BaseFee = eip1559.CalcBaseFee(provider.Config(), parentHeader, header.Time)
	header.GasUsed = 0
	gasPool := new(core.GasPool).AddGas(header.GasLimit)
	mkEVM := func() *vm.EVM {
		// Unfortunately this is not part of any Geth environment setup,
		// we just have to apply it, like how the Geth block-builder worker does.
		context := core.NewEVMBlockContext(header, provider, nil, provider.Config(), statedb)
		var precompileOverrides vm.PrecompileOverrides
		if vmConfig := provider.GetVMConfig(); vmConfig != nil && vmConfig.PrecompileOverrides != nil {
			precompileOverrides = vmConfig.PrecompileOverrides
		}
		return vm.NewEVM(context, statedb, provider.Config(), vm.Config{PrecompileOverrides: precompileOverrides})
	}
	var vmenv *vm.EVM
	if h.ParentBeaconRoot != nil {
		if provider.Config().IsCancun(header.Number, header.Time) {
			// Blob tx not supported on optimism chains but fields must be set when Cancun is active.
			zero := uint64(0)
			header.BlobGasUsed = &zero
			header.ExcessBlobGas = &zero
		}
		// core.NewEVMBlockContext need to be called after the blob gas fields are set
		vmenv = mkEVM()
		core.ProcessBeaconBlockRoot(*header.ParentBeaconRoot, vmenv)
	} else {
		vmenv = mkEVM()
	}
	if provider.Config().IsPrague(header.Number, header.Time) {
		core.ProcessParentBlockHash(header.ParentHash, vmenv)
	}
	if provider.Config().IsIsthmus(header.Time) {
		// The withdrawals root commits to the message passer storage from Isthmus onwards.
		mpHash := statedb.GetStorageRoot(predeploys.L2ToL1MessagePasserAddr)
		header.WithdrawalsHash = &mpHash
		header.RequestsHash = &types.EmptyRequestsHash
	}

	return &BlockProcessor{
		header:       header,
		state:        statedb,
		gasPool:      gasPool,
		dataProvider: provider,
		evm:          vmenv,
	}, nil
}

func (b *BlockProcessor) CheckTxWithinGasLimit(tx *types.Transaction) error {
	if tx.Gas() > b.header.GasLimit {
		return fmt.Errorf("%w tx gas: %d, block gas limit: %d", ErrExceedsGasLimit, tx.Gas(), b.header.GasLimit)
	}
	if tx.Gas() > b.gasPool.Gas() {
		return fmt.Errorf("%w: %d, only have %d", ErrUsesTooMuchGas, tx.Gas(), b.gasPool.Gas())
	}
	return nil
}

func (b *BlockProcessor) AddTx(tx *types.Transaction) (*types.Receipt, error) {
	txIndex := len(b.transactions)
	b.state.SetTxContext(tx.Hash(), txIndex)
	receipt, err := core.ApplyTransaction(b.evm, b.gasPool, b.state, b.header, tx, &b.header.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to apply transaction to L2 block (tx %d): %w", txIndex, err)
	}
	b.receipts = append(b.receipts, receipt)
	b.transactions = append(b.transactions, tx)
	return receipt, nil
}

func (b *BlockProcessor) Assemble() (*types.Block, types.Receipts, error) {
	body := types.Body{
		Transactions: b.transactions,
	}
	if b.header.WithdrawalsHash != nil {
		body.Withdrawals = make([]*types.Withdrawal, 0)
	}

	if b.evm.ChainConfig().IsJovian(b.header.Time) {
		gasUsed, err := types.CalcGasUsedJovian(b.transactions, b.header.GasUsed)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to calculate gas used for Jovian block: %w", err)
		}
		b.header.GasUsed = gasUsed
	}

	block, err := b.dataProvider.Engine().FinalizeAndAssemble(b.dataProvider, b.header, b.state, &body, b.receipts)
	if err != nil {
		return nil, nil, err
	}
	return block, b.receipts, nil
}

func (b *BlockProcessor) Commit() error {
	isCancun := b.dataProvider.Config().IsCancun(b.header.Number, b.header.Time)
	root, err := b.state.Commit(b.header.Number.Uint64(), b.dataProvider.Config().IsEIP158(b.header.Number), isCancun)
	if err != nil {
		return fmt.Errorf("state write error: %w", err)
	}
	if err := b.state.Database().TrieDB().Commit(root, false); err != nil {
		return fmt.Errorf("trie write error: %w", err)
	}
	return nil
}
