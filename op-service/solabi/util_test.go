package solabi

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestUint64RejectsDirtyPadding(t *testing.T) {
	word := make([]byte, 32)
	word[0] = 1
	_, err := ReadUint64(bytes.NewReader(word))
	require.ErrorContains(t, err, "padding")
}

func TestWriteUint256Bounds(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteUint256(&buf, big.NewInt(-1)))
	require.Error(t, WriteUint256(&buf, new(big.Int).Lsh(big.NewInt(1), 256)))
	require.NoError(t, WriteUint256(&buf, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))))
	require.Equal(t, 32, buf.Len())
}

func TestSignatureAndAddress(t *testing.T) {
	var buf bytes.Buffer
	sig := []byte{1, 2, 3, 4}
	addr := common.HexToAddress("0x4200000000000000000000000000000000000015")
	require.NoError(t, WriteSignature(&buf, sig))
	require.NoError(t, WriteAddress(&buf, addr))
	require.NoError(t, WriteUint64(&buf, 42))

	r := bytes.NewReader(buf.Bytes())
	_, err := ReadAndValidateSignature(r, sig)
	require.NoError(t, err)
	got, err := ReadAddress(r)
	require.NoError(t, err)
	require.Equal(t, addr, got)
	n, err := ReadUint64(r)
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)
	require.True(t, EmptyReader(r))

	_, err = ReadAndValidateSignature(bytes.NewReader([]byte{9, 9, 9, 9}), sig)
	require.ErrorContains(t, err, "function signature")
}
