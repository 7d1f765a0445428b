package kvstore

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"

	preimage "github.com/mantlenetworkio/interop-proof/op-preimage"
	"github.com/mantlenetworkio/interop-proof/op-program/client/l2"
)

type l2KeyValueStore struct {
	kv KV
}

var _ l2.KeyValueStore = (*l2KeyValueStore)(nil)

// NewL2KeyValueStore creates a l2.KeyValueStore compatible database that's backed by a KV.
// Block data produced while verifying is written through to the KV, keyed by hash.
func NewL2KeyValueStore(kv KV) l2.KeyValueStore {
	return &l2KeyValueStore{kv: kv}
}

var codePrefixedKeyLength = common.HashLength + len(rawdb.CodePrefix)

// preimageKey is the KV key of the keccak256 pre-image with the given hash.
func preimageKey(key []byte) common.Hash {
	return common.Hash(preimage.Keccak256Key(common.BytesToHash(key)).PreimageKey())
}

func unwrapKey(key []byte) []byte {
	if len(key) == codePrefixedKeyLength && bytes.HasPrefix(key, rawdb.CodePrefix) {
		return key[len(rawdb.CodePrefix):]
	}
	return key
}

func (db *l2KeyValueStore) Get(key []byte) ([]byte, error) {
	key = unwrapKey(key)
	if len(key) != common.HashLength {
		return nil, l2.ErrInvalidKeyLength
	}
	return db.kv.Get(preimageKey(key))
}

func (db *l2KeyValueStore) Has(key []byte) (bool, error) {
	key = unwrapKey(key)
	if len(key) != common.HashLength {
		return false, l2.ErrInvalidKeyLength
	}
	_, err := db.kv.Get(preimageKey(key))
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

func (db *l2KeyValueStore) Put(key []byte, value []byte) error {
	key = unwrapKey(key)
	// Only code and trie node pre-images are expected, both keyed by hash.
	if len(key) != common.HashLength {
		return l2.ErrInvalidKeyLength
	}
	return db.kv.Put(preimageKey(key), value)
}

func (db *l2KeyValueStore) NewBatch() ethdb.Batch {
	return &batch{db: db}
}

func (db *l2KeyValueStore) NewBatchWithSize(size int) ethdb.Batch {
	return &batch{db: db}
}

// batch buffers writes until Write, like memorydb's batch. Deletes are ignored.
type batch struct {
	db     *l2KeyValueStore
	writes []keyvalue
	size   int
}

var _ ethdb.Batch = (*batch)(nil)

type keyvalue struct {
	key   []byte
	value []byte
}

func (b *batch) Put(key []byte, value []byte) error {
	b.writes = append(b.writes, keyvalue{common.CopyBytes(key), common.CopyBytes(value)})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	return nil
}

func (b *batch) DeleteRange(start []byte, end []byte) error {
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	for _, kv := range b.writes {
		if err := b.db.Put(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}

func (b *batch) Replay(w ethdb.KeyValueWriter) error {
	for _, kv := range b.writes {
		if err := w.Put(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}
