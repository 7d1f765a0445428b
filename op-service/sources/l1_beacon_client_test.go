package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/client"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	"github.com/mantlenetworkio/interop-proof/op-service/testlog"
)

type mockBeaconClient struct {
	mock.Mock
}

var _ BeaconClient = (*mockBeaconClient)(nil)

func (m *mockBeaconClient) NodeVersion(ctx context.Context) (string, error) {
	out := m.MethodCalled("NodeVersion")
	return out.String(0), out.Error(1)
}

func (m *mockBeaconClient) ConfigSpec(ctx context.Context) (APIConfigResponse, error) {
	out := m.MethodCalled("ConfigSpec")
	return out.Get(0).(APIConfigResponse), out.Error(1)
}

func (m *mockBeaconClient) BeaconGenesis(ctx context.Context) (APIGenesisResponse, error) {
	out := m.MethodCalled("BeaconGenesis")
	return out.Get(0).(APIGenesisResponse), out.Error(1)
}

func (m *mockBeaconClient) BeaconBlobSideCars(ctx context.Context, slot uint64, hashes []eth.IndexedBlobHash) (APIGetBlobSidecarsResponse, error) {
	out := m.MethodCalled("BeaconBlobSideCars", slot, hashes)
	return out.Get(0).(APIGetBlobSidecarsResponse), out.Error(1)
}

type mockSidecarsClient struct {
	mock.Mock
}

func (m *mockSidecarsClient) BeaconBlobSideCars(ctx context.Context, slot uint64, hashes []eth.IndexedBlobHash) (APIGetBlobSidecarsResponse, error) {
	out := m.MethodCalled("BeaconBlobSideCars", slot, hashes)
	return out.Get(0).(APIGetBlobSidecarsResponse), out.Error(1)
}

func makeTestBlobSidecar(index uint64) (eth.IndexedBlobHash, *BlobSidecar) {
	blob := kzg4844.Blob{}
	// make first byte of test blob match its index so we can easily verify if is returned in the
	// expected order
	blob[0] = byte(index)
	commit, _ := kzg4844.BlobToCommitment(&blob)
	proof, _ := kzg4844.ComputeBlobProof(&blob, commit)
	hash := eth.KZGToVersionedHash(commit)

	idh := eth.IndexedBlobHash{
		Index: index,
		Hash:  hash,
	}
	sidecar := BlobSidecar{
		Index:         index,
		Blob:          eth.Blob(blob),
		KZGCommitment: commit,
		KZGProof:      proof,
	}
	return idh, &sidecar
}

func makeTestSidecars(indices ...uint64) ([]eth.IndexedBlobHash, []*BlobSidecar) {
	var hashes []eth.IndexedBlobHash
	var sidecars []*BlobSidecar
	for _, i := range indices {
		h, s := makeTestBlobSidecar(i)
		hashes = append(hashes, h)
		sidecars = append(sidecars, s)
	}
	return hashes, sidecars
}

func TestBlobsFromSidecars(t *testing.T) {
	indices := []uint64{5, 7, 2}

	// blobs should be returned in order of their indices in the hashes array regardless
	// of the sidecar ordering
	hashes, ordered := makeTestSidecars(indices...)

	// put the sidecars in scrambled order to confirm error
	sidecars := []*BlobSidecar{ordered[2], ordered[0], ordered[1]}
	_, err := blobsFromSidecars(sidecars, hashes)
	require.Error(t, err)

	// too few sidecars should error
	_, err = blobsFromSidecars(ordered[:2], hashes)
	require.Error(t, err)

	// correct order should work
	sidecars = []*BlobSidecar{ordered[0], ordered[1], ordered[2]}
	blobs, err := blobsFromSidecars(sidecars, hashes)
	require.NoError(t, err)
	// confirm order by checking first blob byte against expected index
	for i := range blobs {
		require.Equal(t, byte(indices[i]), blobs[i][0])
	}

	// mangle a commitment to make sure it's detected
	badCommitment := *ordered[1]
	badCommitment.KZGCommitment[13]++
	sidecars[1] = &badCommitment
	_, err = blobsFromSidecars(sidecars, hashes)
	require.Error(t, err)

	// mangle a hash to make sure it's detected
	sidecars[1] = ordered[1]
	hashes[2].Hash[17]++
	_, err = blobsFromSidecars(sidecars, hashes)
	require.Error(t, err)
}

func KZGProofFromHex(s string) (kzg4844.Proof, error) {
	var out kzg4844.Proof // underlying size is 48 bytes
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != 48 {
		return out, fmt.Errorf("want 48 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

var badProof, _ = KZGProofFromHex("0xc00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")

func TestBlobsFromSidecars_BadProof(t *testing.T) {
	hashes, sidecars := makeTestSidecars(5, 7, 2)

	// Set proof to a bad / stubbed value
	sidecars[1].KZGProof = badProof

	// Check that verification succeeds, the proof is not required
	_, err := blobsFromSidecars(sidecars, hashes)
	require.NoError(t, err)

	// a bad proof with a blob that does not match its commitment fails
	sidecars[1].Blob[100]++
	_, err = blobsFromSidecars(sidecars, hashes)
	require.ErrorContains(t, err, "failed verification")
}

func TestBlobsFromSidecars_EmptySidecarList(t *testing.T) {
	blobs, err := blobsFromSidecars([]*BlobSidecar{}, []eth.IndexedBlobHash{})
	require.NoError(t, err)
	require.Empty(t, blobs, "blobs should be empty when no sidecars are provided")
}

func expectSlotTiming(p *mockBeaconClient) {
	p.On("BeaconGenesis").Return(APIGenesisResponse{Data: ReducedGenesisData{GenesisTime: 10}}, nil).Once()
	p.On("ConfigSpec").Return(APIConfigResponse{Data: ReducedConfigData{SecondsPerSlot: 2}}, nil).Once()
}

func TestBeaconClientNoErrorPrimary(t *testing.T) {
	hashes, sidecars := makeTestSidecars(5, 7, 2)

	ctx := context.Background()
	p := new(mockBeaconClient)
	f := new(mockSidecarsClient)
	c := NewL1BeaconClient(p, L1BeaconClientConfig{}, f)
	expectSlotTiming(p)
	// Timestamp 12 = Slot 1
	p.On("BeaconBlobSideCars", uint64(1), hashes).Return(APIGetBlobSidecarsResponse{Data: sidecars}, nil)

	resp, err := c.GetBlobSidecars(ctx, eth.L1BlockRef{Time: 12}, hashes)
	require.NoError(t, err)
	require.Equal(t, sidecars, resp)
	p.AssertExpectations(t)
	f.AssertExpectations(t)
}

func TestBeaconClientFallback(t *testing.T) {
	hashes, sidecars := makeTestSidecars(5, 7, 2)

	ctx := context.Background()
	p := new(mockBeaconClient)
	f := new(mockSidecarsClient)
	c := NewL1BeaconClient(p, L1BeaconClientConfig{}, f)
	expectSlotTiming(p)
	// Timestamp 12 = Slot 1
	p.On("BeaconBlobSideCars", uint64(1), hashes).Return(APIGetBlobSidecarsResponse{}, errors.New("404 not found")).Once()
	f.On("BeaconBlobSideCars", uint64(1), hashes).Return(APIGetBlobSidecarsResponse{Data: sidecars}, nil).Once()

	resp, err := c.GetBlobSidecars(ctx, eth.L1BlockRef{Time: 12}, hashes)
	require.NoError(t, err)
	require.Equal(t, sidecars, resp)

	// Second set of calls. This time rotate back to the primary
	hashes, sidecars = makeTestSidecars(3, 9, 11)

	// Timestamp 14 = Slot 2
	f.On("BeaconBlobSideCars", uint64(2), hashes).Return(APIGetBlobSidecarsResponse{}, errors.New("404 not found")).Once()
	p.On("BeaconBlobSideCars", uint64(2), hashes).Return(APIGetBlobSidecarsResponse{Data: sidecars}, nil).Once()

	resp, err = c.GetBlobSidecars(ctx, eth.L1BlockRef{Time: 14}, hashes)
	require.NoError(t, err)
	require.Equal(t, sidecars, resp)
	p.AssertExpectations(t)
	f.AssertExpectations(t)
}

func TestBeaconClientAllFail(t *testing.T) {
	hashes, _ := makeTestSidecars(1)
	p := new(mockBeaconClient)
	c := NewL1BeaconClient(p, L1BeaconClientConfig{SlotInterval: 12})
	p.On("BeaconGenesis").Return(APIGenesisResponse{Data: ReducedGenesisData{GenesisTime: 0}}, nil).Once()
	p.On("BeaconBlobSideCars", uint64(2), hashes).Return(APIGetBlobSidecarsResponse{}, errors.New("unavailable"))

	_, err := c.GetBlobs(context.Background(), eth.L1BlockRef{Time: 24}, hashes)
	require.ErrorContains(t, err, "unavailable")
	p.AssertExpectations(t)
}

func TestBeaconClientTimeBeforeGenesis(t *testing.T) {
	hashes, _ := makeTestSidecars(1)
	p := new(mockBeaconClient)
	c := NewL1BeaconClient(p, L1BeaconClientConfig{})
	expectSlotTiming(p)
	_, err := c.GetBlobs(context.Background(), eth.L1BlockRef{Time: 4}, hashes)
	require.ErrorContains(t, err, "precedes genesis")
}

func TestBeaconClientGetBlobs(t *testing.T) {
	hashes, sidecars := makeTestSidecars(5, 7, 2)

	// invalidate proof
	sidecars[1].KZGProof = badProof

	p := new(mockBeaconClient)
	expectSlotTiming(p)
	c := NewL1BeaconClient(p, L1BeaconClientConfig{})
	p.On("BeaconBlobSideCars", uint64(1), hashes).Return(APIGetBlobSidecarsResponse{Data: sidecars}, nil)
	blobs, err := c.GetBlobs(context.Background(), eth.L1BlockRef{Time: 12}, hashes)
	require.NoError(t, err)
	require.Len(t, blobs, 3)
	require.Equal(t, &sidecars[2].Blob, blobs[2])
}

func TestBeaconHTTPClient(t *testing.T) {
	hashes, sidecars := makeTestSidecars(3, 9, 11)
	var respond []*BlobSidecar
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/eth/v1/beacon/genesis":
			_, _ = w.Write([]byte(`{"data":{"genesis_time":"1606824023","genesis_validators_root":"0x00"}}`))
		case "/eth/v1/config/spec":
			_, _ = w.Write([]byte(`{"data":{"SECONDS_PER_SLOT":"12","SLOTS_PER_EPOCH":"32"}}`))
		case "/eth/v1/node/version":
			_, _ = w.Write([]byte(`{"data":{"version":"Lighthouse/v5.1.0"}}`))
		case "/eth/v1/beacon/blob_sidecars/2":
			require.Equal(t, []string{"3", "9", "11"}, r.URL.Query()["indices"])
			require.NoError(t, json.NewEncoder(w).Encode(APIGetBlobSidecarsResponse{Data: respond}))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"not found"}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	b := NewBeaconHTTPClient(client.NewBasicHTTPClient(srv.URL, testlog.Logger(t, log.LevelInfo)))

	genesis, err := b.BeaconGenesis(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1606824023), genesis.Data.GenesisTime)
	spec, err := b.ConfigSpec(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(12), spec.Data.SecondsPerSlot)
	version, err := b.NodeVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, "Lighthouse/v5.1.0", version)

	// a 200 with an empty list is an error
	_, err = b.BeaconBlobSideCars(ctx, 2, hashes)
	require.EqualError(t, err, fmt.Sprintf("#returned blobs(%d) != #requested blobs(%d)", 0, len(hashes)))

	respond = sidecars
	resp, err := b.BeaconBlobSideCars(ctx, 2, hashes)
	require.NoError(t, err)
	require.Equal(t, sidecars, resp.Data)

	_, err = b.BeaconBlobSideCars(ctx, 3, hashes)
	require.ErrorIs(t, err, ethereum.NotFound)
}

func TestClientPoolSingle(t *testing.T) {
	p := NewClientPool(1)
	for i := 0; i < 10; i++ {
		require.Equal(t, 1, p.Get())
		p.MoveToNext()
	}
}

func TestClientPoolSeveral(t *testing.T) {
	p := NewClientPool(0, 1, 2, 3)
	for i := 0; i < 25; i++ {
		require.Equal(t, i%4, p.Get())
		p.MoveToNext()
	}
}

func TestVerifyBlob(t *testing.T) {
	blob := eth.Blob{}
	blob[0] = byte(7)
	versionedHash := common.HexToHash("0x0164e32184169f11528f72aeb318f94d958aa28fba0731a52aead6df0104a98e")
	require.NoError(t, verifyBlob(&blob, versionedHash))

	differentBlob := eth.Blob{}
	differentBlob[0] = byte(8)
	require.Error(t, verifyBlob(&differentBlob, versionedHash))
}
