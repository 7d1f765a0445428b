package l2

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

const (
	HintL2BlockHeader  = "l2-block-header"
	HintL2Transactions = "l2-transactions"
	HintL2Receipts     = "l2-receipts"
	HintL2Code         = "l2-code"
	HintL2StateNode    = "l2-state-node"
	HintL2Output       = "l2-output"
)

// HashAndChainID is the hint payload shared by all L2 hints:
// the 32 byte hash followed by the big-endian uint64 chain ID.
type HashAndChainID struct {
	Hash    common.Hash
	ChainID eth.ChainID
}

func (h HashAndChainID) Marshal() []byte {
	d := make([]byte, 32+8)
	copy(d[:32], h.Hash[:])
	binary.BigEndian.PutUint64(d[32:], eth.EvilChainIDToUInt64(h.ChainID))
	return d
}

type BlockHeaderHint HashAndChainID

var _ preimage.Hint = BlockHeaderHint{}

func (l BlockHeaderHint) Hint() string {
	return HintL2BlockHeader + " " + hexutil.Encode(HashAndChainID(l).Marshal())
}

type TransactionsHint HashAndChainID

var _ preimage.Hint = TransactionsHint{}

func (l TransactionsHint) Hint() string {
	return HintL2Transactions + " " + hexutil.Encode(HashAndChainID(l).Marshal())
}

type ReceiptsHint HashAndChainID

var _ preimage.Hint = ReceiptsHint{}

func (l ReceiptsHint) Hint() string {
	return HintL2Receipts + " " + hexutil.Encode(HashAndChainID(l).Marshal())
}

type CodeHint HashAndChainID

var _ preimage.Hint = CodeHint{}

func (l CodeHint) Hint() string {
	return HintL2Code + " " + hexutil.Encode(HashAndChainID(l).Marshal())
}

type StateNodeHint HashAndChainID

var _ preimage.Hint = StateNodeHint{}

func (l StateNodeHint) Hint() string {
	return HintL2StateNode + " " + hexutil.Encode(HashAndChainID(l).Marshal())
}

type L2OutputHint HashAndChainID

var _ preimage.Hint = L2OutputHint{}

func (l L2OutputHint) Hint() string {
	return HintL2Output + " " + hexutil.Encode(HashAndChainID(l).Marshal())
}
