package kvstore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	kvTest(t, NewMemoryKV())
}

func TestDiskKV(t *testing.T) {
	kv, err := NewDiskKV(t.TempDir())
	require.NoError(t, err)
	kvTest(t, kv)
}

func TestDiskKVPersists(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewDiskKV(dir)
	require.NoError(t, err)
	key := crypto.Keccak256Hash([]byte("persisted"))
	require.NoError(t, kv.Put(key, []byte("persisted")))
	require.NoError(t, kv.Close())

	reopened, err := NewDiskKV(dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, reopened.Close())
	})
	val, err := reopened.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), val)
}

func kvTest(t *testing.T, kv KV) {
	t.Cleanup(func() {
		require.NoError(t, kv.Close())
	})

	t.Run("roundtrip", func(t *testing.T) {
		_, err := kv.Get(common.Hash{0xaa})
		require.ErrorIs(t, err, ErrNotFound, "file (in new tmp dir) does not exist yet")

		require.NoError(t, kv.Put(common.Hash{0xaa}, []byte("hello world")))

		dat, err := kv.Get(common.Hash{0xaa})
		require.NoError(t, err, "pre-image must exist now")
		require.Equal(t, "hello world", string(dat), "pre-image must match")
	})

	t.Run("empty pre-image", func(t *testing.T) {
		require.NoError(t, kv.Put(common.Hash{0xbb}, []byte{}))

		dat, err := kv.Get(common.Hash{0xbb})
		require.NoError(t, err, "pre-image must exist now")
		require.Zero(t, len(dat), "pre-image must be empty")
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, kv.Put(common.Hash{0xcc}, []byte("first")))
		require.NoError(t, kv.Put(common.Hash{0xcc}, []byte("second")))

		dat, err := kv.Get(common.Hash{0xcc})
		require.NoError(t, err)
		require.Equal(t, "second", string(dat))
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		require.NoError(t, kv.Put(common.Hash{0xdd}, []byte("original")))
		dat, err := kv.Get(common.Hash{0xdd})
		require.NoError(t, err)
		dat[0] = 'X'

		dat, err = kv.Get(common.Hash{0xdd})
		require.NoError(t, err)
		require.Equal(t, "original", string(dat))
	})
}
