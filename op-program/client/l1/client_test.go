package l1

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
	"github.com/mantlenetworkio/interop-proof/op-service/testutils"
)

type stubOracle struct {
	t       *testing.T
	headers map[common.Hash]eth.BlockInfo
	calls   int
}

func newStubOracle(t *testing.T) *stubOracle {
	return &stubOracle{t: t, headers: make(map[common.Hash]eth.BlockInfo)}
}

func (o *stubOracle) HeaderByBlockHash(blockHash common.Hash) (eth.BlockInfo, error) {
	o.calls++
	info, ok := o.headers[blockHash]
	if !ok {
		return nil, errors.New("unknown block")
	}
	return info, nil
}

func (o *stubOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	info, err := o.HeaderByBlockHash(blockHash)
	return info, nil, err
}

func (o *stubOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	info, err := o.HeaderByBlockHash(blockHash)
	return info, nil, err
}

func (o *stubOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) (*eth.Blob, error) {
	o.calls++
	return &eth.Blob{0x01}, nil
}

func (o *stubOracle) Precompile(address common.Address, input []byte, requiredGas uint64) ([]byte, bool, error) {
	o.calls++
	return []byte{0x02}, true, nil
}

// chain adds a chain of length headers to the oracle, returning them from oldest to newest.
func (o *stubOracle) chain(rng *rand.Rand, length int) []eth.BlockInfo {
	var out []eth.BlockInfo
	parent := testutils.RandomHash(rng)
	for i := 0; i < length; i++ {
		header := testutils.RandomL1Header(rng, parent, uint64(100+i), uint64(1000+12*i))
		info := eth.HeaderBlockInfo(header)
		o.headers[info.Hash()] = info
		out = append(out, info)
		parent = info.Hash()
	}
	return out
}

func TestL1BlockRefByNumber(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	oracle := newStubOracle(t)
	blocks := oracle.chain(rng, 10)
	head := blocks[len(blocks)-1]
	logger := testlog.Logger(t, log.LevelDebug)

	client, err := NewOracleL1Client(logger, oracle, head.Hash())
	require.NoError(t, err)
	require.Equal(t, eth.InfoToL1BlockRef(head), client.Head())

	t.Run("head", func(t *testing.T) {
		ref, err := client.L1BlockRefByNumber(context.Background(), head.NumberU64())
		require.NoError(t, err)
		require.Equal(t, eth.InfoToL1BlockRef(head), ref)
	})

	t.Run("past head", func(t *testing.T) {
		_, err := client.L1BlockRefByNumber(context.Background(), head.NumberU64()+1)
		require.ErrorIs(t, err, ErrBlockNumberPastHead)
	})

	t.Run("walk back", func(t *testing.T) {
		target := blocks[3]
		ref, err := client.L1BlockRefByNumber(context.Background(), target.NumberU64())
		require.NoError(t, err)
		require.Equal(t, eth.InfoToL1BlockRef(target), ref)

		// Indexed blocks are looked up by hash directly.
		before := oracle.calls
		ref, err = client.L1BlockRefByNumber(context.Background(), blocks[5].NumberU64())
		require.NoError(t, err)
		require.Equal(t, eth.InfoToL1BlockRef(blocks[5]), ref)
		require.Equal(t, before+1, oracle.calls)
	})

	t.Run("walk back past known blocks", func(t *testing.T) {
		_, err := client.L1BlockRefByNumber(context.Background(), blocks[0].NumberU64()-1)
		require.ErrorContains(t, err, "unknown block")
	})
}

func TestUnknownL1Head(t *testing.T) {
	oracle := newStubOracle(t)
	_, err := NewOracleL1Client(testlog.Logger(t, log.LevelInfo), oracle, common.Hash{0xab})
	require.Error(t, err)
}

func TestCachingOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	stub := newStubOracle(t)
	blocks := stub.chain(rng, 2)
	oracle := NewCachingOracle(stub)

	info, err := oracle.HeaderByBlockHash(blocks[1].Hash())
	require.NoError(t, err)
	require.Equal(t, blocks[1].Hash(), info.Hash())
	_, err = oracle.HeaderByBlockHash(blocks[1].Hash())
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls, "second lookup is cached")

	ref := eth.L1BlockRef{Time: 10}
	blobHash := eth.IndexedBlobHash{Index: 1, Hash: common.Hash{0x01}}
	_, err = oracle.GetBlob(ref, blobHash)
	require.NoError(t, err)
	_, err = oracle.GetBlob(ref, blobHash)
	require.NoError(t, err)
	require.Equal(t, 2, stub.calls)
	_, err = oracle.GetBlob(eth.L1BlockRef{Time: 11}, blobHash)
	require.NoError(t, err)
	require.Equal(t, 3, stub.calls, "blob cache is keyed by block time")

	_, _, err = oracle.Precompile(common.Address{0x01}, []byte{1}, 10)
	require.NoError(t, err)
	_, _, err = oracle.Precompile(common.Address{0x01}, []byte{1}, 10)
	require.NoError(t, err)
	require.Equal(t, 4, stub.calls)

	_, err = oracle.HeaderByBlockHash(common.Hash{0xff})
	require.Error(t, err)
	_, err = oracle.HeaderByBlockHash(common.Hash{0xff})
	require.Error(t, err)
	require.Equal(t, 6, stub.calls, "errors are not cached")
}

func TestBlobFetcher(t *testing.T) {
	stub := newStubOracle(t)
	fetcher := NewBlobFetcher(testlog.Logger(t, log.LevelInfo), stub)
	blobs, err := fetcher.GetBlobs(context.Background(), eth.L1BlockRef{}, []eth.IndexedBlobHash{{Index: 0}, {Index: 1}})
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	require.Equal(t, byte(0x01), blobs[1][0])
}
