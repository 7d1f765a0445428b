package kvstore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
)

func TestPreimageSourceSplitter(t *testing.T) {
	localResult := []byte{1}
	globalResult := []byte{2}
	local := func(key common.Hash) ([]byte, error) { return localResult, nil }
	global := func(key common.Hash) ([]byte, error) { return globalResult, nil }
	splitter := NewPreimageSourceSplitter(local, global)

	tests := []struct {
		name     string
		keyType  byte
		expected []byte
	}{
		{"Local", byte(preimage.LocalKeyType), localResult},
		{"Keccak", byte(preimage.Keccak256KeyType), globalResult},
		{"Generic", byte(preimage.GlobalGenericKeyType), globalResult},
		{"Sha256", byte(preimage.Sha256KeyType), globalResult},
		{"Blob", byte(preimage.BlobKeyType), globalResult},
		{"Precompile", byte(preimage.PrecompileKeyType), globalResult},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			key := common.Hash{test.keyType, 0xff}
			result, err := splitter.Get(key)
			require.NoError(t, err)
			require.Equal(t, test.expected, result)
		})
	}
}
