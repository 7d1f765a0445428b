package eth_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

func newReceipt(cumulativeGas uint64, logCount int) *ethtypes.Receipt {
	logs := make([]*ethtypes.Log, logCount)
	for i := range logs {
		logs[i] = &ethtypes.Log{Address: common.Address{byte(i + 1)}, Topics: []common.Hash{}, Data: []byte{}}
	}
	return &ethtypes.Receipt{
		Type:              ethtypes.LegacyTxType,
		Status:            ethtypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: cumulativeGas,
		Logs:              logs,
	}
}

func newTx(nonce uint64) *ethtypes.Transaction {
	return ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: nonce, Gas: 21000, GasPrice: big.NewInt(1)})
}

func TestDecodeRawReceipts(t *testing.T) {
	receipts := []*ethtypes.Receipt{newReceipt(21000, 2), newReceipt(50000, 0), newReceipt(70000, 1)}
	txs := ethtypes.Transactions{newTx(0), newTx(1), newTx(2)}
	raw, err := eth.EncodeReceipts(receipts)
	require.NoError(t, err)

	block := eth.BlockID{Hash: common.Hash{0xaa}, Number: 12}
	decoded, err := eth.DecodeRawReceipts(block, raw, txs)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	require.Equal(t, uint64(21000), decoded[0].GasUsed)
	require.Equal(t, uint64(29000), decoded[1].GasUsed)
	require.Equal(t, uint64(20000), decoded[2].GasUsed)
	for i, r := range decoded {
		require.Equal(t, txs[i].Hash(), r.TxHash)
		require.Equal(t, block.Hash, r.BlockHash)
		require.Equal(t, uint(i), r.TransactionIndex)
	}
	// log indices are contiguous across the block
	require.Equal(t, uint(0), decoded[0].Logs[0].Index)
	require.Equal(t, uint(1), decoded[0].Logs[1].Index)
	require.Equal(t, uint(2), decoded[2].Logs[0].Index)
	require.Equal(t, uint64(12), decoded[2].Logs[0].BlockNumber)
}

func TestDecodeRawReceiptsCountMismatch(t *testing.T) {
	raw, err := eth.EncodeReceipts([]*ethtypes.Receipt{newReceipt(21000, 0)})
	require.NoError(t, err)
	_, err = eth.DecodeRawReceipts(eth.BlockID{}, raw, ethtypes.Transactions{})
	require.ErrorContains(t, err, "got 1 receipts for 0 transactions")
}
