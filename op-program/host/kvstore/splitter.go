package kvstore

import (
	"github.com/ethereum/go-ethereum/common"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
)

// PreimageSourceSplitter routes local keys to the local source and all other keys to the global source.
type PreimageSourceSplitter struct {
	local  PreimageSource
	global PreimageSource
}

func NewPreimageSourceSplitter(local PreimageSource, global PreimageSource) *PreimageSourceSplitter {
	return &PreimageSourceSplitter{
		local:  local,
		global: global,
	}
}

func (s *PreimageSourceSplitter) Get(key common.Hash) ([]byte, error) {
	if key[0] == byte(preimage.LocalKeyType) {
		return s.local(key)
	}
	return s.global(key)
}
