package kvstore

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryKV implements the KV store interface in memory, backed by a regular Go map.
// This should only be used in testing, as large programs may require more pre-image data than available memory.
// MemoryKV is safe for concurrent use.
type MemoryKV struct {
	sync.RWMutex
	m map[common.Hash][]byte
}

var _ KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[common.Hash][]byte)}
}

func (m *MemoryKV) Put(k common.Hash, v []byte) error {
	m.Lock()
	defer m.Unlock()
	m.m[k] = common.CopyBytes(v)
	return nil
}

func (m *MemoryKV) Get(k common.Hash) ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	v, ok := m.m[k]
	if !ok {
		return nil, ErrNotFound
	}
	return common.CopyBytes(v), nil
}

func (m *MemoryKV) Close() error {
	return nil
}
