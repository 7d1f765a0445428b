package testutils

import (
	"crypto/ecdsa"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

var testKey = func() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	if err != nil {
		panic(err)
	}
	return key
}()

// RandomSigner returns the signer of the random transactions, bound to a fixed chain ID.
func RandomSigner() types.Signer {
	return types.LatestSignerForChainID(big.NewInt(900))
}

func RandomTx(rng *rand.Rand, baseFee *big.Int, signer types.Signer) *types.Transaction {
	gas := uint64(21000 + rng.Intn(100_000))
	tip := big.NewInt(rng.Int63n(10 * 1e9))
	return types.MustSignNewTx(testKey, signer, &types.DynamicFeeTx{
		ChainID:   signer.ChainID(),
		Nonce:     rng.Uint64(),
		GasTipCap: tip,
		GasFeeCap: new(big.Int).Add(baseFee, tip),
		Gas:       gas,
		To:        new(common.Address),
		Value:     big.NewInt(rng.Int63n(1e9)),
		Data:      RandomData(rng, rng.Intn(200)),
	})
}

func RandomLog(rng *rand.Rand) *types.Log {
	topics := make([]common.Hash, rng.Intn(4))
	for i := range topics {
		topics[i] = RandomHash(rng)
	}
	return &types.Log{
		Address: RandomAddress(rng),
		Topics:  topics,
		Data:    RandomData(rng, rng.Intn(100)),
	}
}

func RandomReceipt(rng *rand.Rand, tx *types.Transaction, cumulativeGasUsed uint64) *types.Receipt {
	logs := make([]*types.Log, rng.Intn(5))
	for i := range logs {
		logs[i] = RandomLog(rng)
	}
	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            uint64(rng.Intn(2)),
		CumulativeGasUsed: cumulativeGasUsed,
		Logs:              logs,
		TxHash:            tx.Hash(),
		GasUsed:           tx.Gas(),
	}
	receipt.Bloom = types.CreateBloom(receipt)
	return receipt
}

// RandomBlock returns a random L1 block with txCount transactions, and matching receipts.
// The header commits to both the transactions and the receipts.
func RandomBlock(rng *rand.Rand, txCount uint64) (*types.Block, []*types.Receipt) {
	return RandomBlockPrependTxs(rng, int(txCount))
}

// RandomBlockPrependTxs returns a random block with txCount random transactions,
// placed after the given transactions.
func RandomBlockPrependTxs(rng *rand.Rand, txCount int, ptxs ...*types.Transaction) (*types.Block, []*types.Receipt) {
	header := RandomL1Header(rng, RandomHash(rng), uint64(rng.Int63n(1_000_000)), uint64(rng.Int63n(2_000_000_000)))
	signer := RandomSigner()
	txs := make([]*types.Transaction, 0, txCount+len(ptxs))
	txs = append(txs, ptxs...)
	for i := 0; i < txCount; i++ {
		txs = append(txs, RandomTx(rng, header.BaseFee, signer))
	}
	receipts := make([]*types.Receipt, 0, len(txs))
	cumulativeGasUsed := uint64(0)
	for _, tx := range txs {
		cumulativeGasUsed += tx.Gas()
		receipts = append(receipts, RandomReceipt(rng, tx, cumulativeGasUsed))
	}
	header.GasUsed = cumulativeGasUsed
	header.TxHash = types.DeriveSha(types.Transactions(txs), trie.NewStackTrie(nil))
	header.ReceiptHash = types.DeriveSha(types.Receipts(receipts), trie.NewStackTrie(nil))
	header.Bloom = types.MergeBloom(receipts)
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})
	for _, r := range receipts {
		r.BlockHash = block.Hash()
		r.BlockNumber = block.Number()
	}
	return block, receipts
}

// RandomBlob returns a random blob, with canonical field elements, and its KZG commitment.
func RandomBlob(rng *rand.Rand) (*kzg4844.Blob, kzg4844.Commitment, error) {
	var blob eth.Blob
	data := RandomData(rng, eth.MaxBlobDataSize)
	if err := blob.FromData(data); err != nil {
		return nil, kzg4844.Commitment{}, err
	}
	kzgBlob := blob.KZGBlob()
	commitment, err := kzg4844.BlobToCommitment(kzgBlob)
	if err != nil {
		return nil, kzg4844.Commitment{}, err
	}
	return kzgBlob, commitment, nil
}
