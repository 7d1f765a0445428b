package testutils

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip4844"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var _ eth.BlockInfo = &MockBlockInfo{}

type MockBlockInfo struct {
	// Prefixed all fields with "Info" to avoid collisions with the interface method names.

	InfoHash             common.Hash
	InfoParentHash       common.Hash
	InfoCoinbase         common.Address
	InfoRoot             common.Hash
	InfoNum              uint64
	InfoTime             uint64
	InfoMixDigest        [32]byte
	InfoBaseFee          *big.Int
	InfoBlobBaseFee      *big.Int
	InfoExcessBlobGas    *uint64
	InfoReceiptRoot      common.Hash
	InfoGasUsed          uint64
	InfoGasLimit         uint64
	InfoHeaderRLP        []byte
	InfoParentBeaconRoot *common.Hash
	InfoWithdrawalsRoot  *common.Hash
}

func (l *MockBlockInfo) Hash() common.Hash {
	return l.InfoHash
}

func (l *MockBlockInfo) ParentHash() common.Hash {
	return l.InfoParentHash
}

func (l *MockBlockInfo) Coinbase() common.Address {
	return l.InfoCoinbase
}

func (l *MockBlockInfo) Root() common.Hash {
	return l.InfoRoot
}

func (l *MockBlockInfo) NumberU64() uint64 {
	return l.InfoNum
}

func (l *MockBlockInfo) Time() uint64 {
	return l.InfoTime
}

func (l *MockBlockInfo) MixDigest() common.Hash {
	return l.InfoMixDigest
}

func (l *MockBlockInfo) BaseFee() *big.Int {
	return l.InfoBaseFee
}

func (l *MockBlockInfo) BlobBaseFee(chainConfig *params.ChainConfig) *big.Int {
	if l.InfoExcessBlobGas != nil {
		return eip4844.CalcBlobFee(chainConfig, &types.Header{Time: l.InfoTime, ExcessBlobGas: l.InfoExcessBlobGas})
	}
	return l.InfoBlobBaseFee
}

func (l *MockBlockInfo) ExcessBlobGas() *uint64 {
	return l.InfoExcessBlobGas
}

func (l *MockBlockInfo) ReceiptHash() common.Hash {
	return l.InfoReceiptRoot
}

func (l *MockBlockInfo) GasUsed() uint64 {
	return l.InfoGasUsed
}

func (l *MockBlockInfo) GasLimit() uint64 {
	return l.InfoGasLimit
}

func (l *MockBlockInfo) ParentBeaconRoot() *common.Hash {
	return l.InfoParentBeaconRoot
}

func (l *MockBlockInfo) WithdrawalsRoot() *common.Hash {
	return l.InfoWithdrawalsRoot
}

func (l *MockBlockInfo) HeaderRLP() ([]byte, error) {
	if l.InfoHeaderRLP != nil {
		return l.InfoHeaderRLP, nil
	}
	return rlp.EncodeToBytes(&types.Header{
		ParentHash:       l.InfoParentHash,
		Coinbase:         l.InfoCoinbase,
		Root:             l.InfoRoot,
		ReceiptHash:      l.InfoReceiptRoot,
		Number:           new(big.Int).SetUint64(l.InfoNum),
		GasLimit:         l.InfoGasLimit,
		GasUsed:          l.InfoGasUsed,
		Time:             l.InfoTime,
		MixDigest:        l.InfoMixDigest,
		BaseFee:          l.InfoBaseFee,
		ParentBeaconRoot: l.InfoParentBeaconRoot,
		WithdrawalsHash:  l.InfoWithdrawalsRoot,
	})
}

func (l *MockBlockInfo) ID() eth.BlockID {
	return eth.BlockID{Hash: l.InfoHash, Number: l.InfoNum}
}

func (l *MockBlockInfo) BlockRef() eth.L1BlockRef {
	return eth.InfoToL1BlockRef(l)
}
