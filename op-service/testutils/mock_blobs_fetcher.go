package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type MockBlobsFetcher struct {
	mock.Mock
}

func (cl *MockBlobsFetcher) GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error) {
	out := cl.Mock.Called(ref, hashes)
	return out.Get(0).([]*eth.Blob), out.Error(1)
}

func (cl *MockBlobsFetcher) ExpectOnGetBlobs(ref eth.L1BlockRef, hashes []eth.IndexedBlobHash, blobs []*eth.Blob, err error) {
	cl.Mock.On("GetBlobs", ref, hashes).Once().Return(blobs, err)
}
