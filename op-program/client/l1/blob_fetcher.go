package l1

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

type BlobFetcher struct {
	logger log.Logger
	oracle Oracle
}

func NewBlobFetcher(logger log.Logger, oracle Oracle) *BlobFetcher {
	return &BlobFetcher{
		logger: logger,
		oracle: oracle,
	}
}

// GetBlobs fetches blobs that were confirmed in the given L1 block with the given indexed blob hashes.
func (b *BlobFetcher) GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error) {
	blobs := make([]*eth.Blob, len(hashes))
	for i := 0; i < len(hashes); i++ {
		b.logger.Info("Fetching blob", "l1_ref", ref.Hash, "blob_versioned_hash", hashes[i].Hash, "index", hashes[i].Index)
		blob, err := b.oracle.GetBlob(ref, hashes[i])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch blob %d of block %s: %w", hashes[i].Index, ref, err)
		}
		blobs[i] = blob
	}
	return blobs, nil
}
