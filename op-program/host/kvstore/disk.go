package kvstore

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// DiskKV is a disk-backed key-value store, with a pebble database under the data directory.
type DiskKV struct {
	sync.RWMutex
	db *pebble.DB
}

var _ KV = (*DiskKV)(nil)

// NewDiskKV opens, or creates, the pre-image database in the given directory.
func NewDiskKV(path string) (*DiskKV, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(int64(32 * 1024 * 1024)),
		MaxConcurrentCompactions: runtime.NumCPU,
		Levels: []pebble.LevelOptions{
			{Compression: pebble.SnappyCompression},
		},
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebbledb at %s: %w", path, err)
	}
	return &DiskKV{db: db}, nil
}

func (d *DiskKV) Put(k common.Hash, v []byte) error {
	d.Lock()
	defer d.Unlock()
	return d.db.Set(k.Bytes(), v, pebble.NoSync)
}

func (d *DiskKV) Get(k common.Hash) ([]byte, error) {
	d.RLock()
	defer d.RUnlock()
	dat, closer, err := d.db.Get(k.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return common.CopyBytes(dat), nil
}

func (d *DiskKV) Close() error {
	d.Lock()
	defer d.Unlock()
	return d.db.Close()
}
