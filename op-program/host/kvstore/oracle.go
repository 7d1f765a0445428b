package kvstore

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
)

// PreimageOracle serves pre-images directly from a PreimageSource, without a preimage server in between.
// All data must already be present: hints are only logged.
// Like the preimage client, it panics when a pre-image is unavailable.
type PreimageOracle struct {
	logger log.Logger
	source PreimageSource
}

var (
	_ preimage.Oracle = (*PreimageOracle)(nil)
	_ preimage.Hinter = (*PreimageOracle)(nil)
)

func NewPreimageOracle(logger log.Logger, source PreimageSource) *PreimageOracle {
	return &PreimageOracle{logger: logger, source: source}
}

func (o *PreimageOracle) Get(key preimage.Key) []byte {
	k := common.Hash(key.PreimageKey())
	data, err := o.source(k)
	if err != nil {
		panic(fmt.Errorf("failed to get pre-image %s: %w", k, err))
	}
	if hashKey, ok := key.(preimage.Keccak256Key); ok {
		if actual := crypto.Keccak256Hash(data); actual != common.Hash(hashKey) {
			panic(fmt.Errorf("pre-image %s has invalid hash %s", k, actual))
		}
	}
	return data
}

func (o *PreimageOracle) Hint(v preimage.Hint) {
	o.logger.Trace("Received hint", "hint", v.Hint())
}
