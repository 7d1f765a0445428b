package mpt

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb/database"
)

// PreimageFn fetches the trie node with the given keccak256 hash.
type PreimageFn func(key common.Hash) ([]byte, error)

// ReadTrie takes a Merkle Patricia Trie (MPT) root of a "DerivableList", and a pre-image oracle getter,
// and traverses the implied MPT to collect all raw leaf nodes in order, which are returned as a list.
// The list is keyed by rlp(index), like in the block transactions and receipts tries.
func ReadTrie(root common.Hash, getPreimage PreimageFn) ([]hexutil.Bytes, error) {
	tr, err := trie.New(trie.TrieID(root), &nodeDB{get: getPreimage})
	if err != nil {
		return nil, fmt.Errorf("failed to open trie %s: %w", root, err)
	}
	var values []hexutil.Bytes
	for i := uint64(0); ; i++ {
		key, err := rlp.EncodeToBytes(i)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %d: %w", i, err)
		}
		value, err := tr.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read list item %d of trie %s: %w", i, root, err)
		}
		if len(value) == 0 {
			break
		}
		values = append(values, value)
	}
	return values, nil
}

// WriteTrie takes a list of values, and merkleizes them as a "DerivableList":
// a Merkle Patricia Trie (MPT) with values keyed by their RLP encoded index.
// This merkleization matches the transactions and receipts commitments of the block header.
// The returned preimages are the hashed trie nodes, the root node included.
func WriteTrie(values []hexutil.Bytes) (common.Hash, []hexutil.Bytes) {
	var out []hexutil.Bytes
	st := trie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		out = append(out, common.CopyBytes(blob))
	})
	root := types.DeriveSha(rawList(values), noResetHasher{st})
	return root, out
}

type rawList []hexutil.Bytes

func (r rawList) Len() int {
	return len(r)
}

func (r rawList) EncodeIndex(i int, buf *bytes.Buffer) {
	buf.Write(r[i])
}

var _ types.DerivableList = rawList(nil)

// noResetHasher keeps DeriveSha from resetting the stack trie, which holds the node callback.
type noResetHasher struct {
	*trie.StackTrie
}

func (n noResetHasher) Reset() {}

var _ types.ListHasher = noResetHasher{}

type nodeDB struct {
	get PreimageFn
}

func (n *nodeDB) NodeReader(stateRoot common.Hash) (database.NodeReader, error) {
	return n, nil
}

func (n *nodeDB) Node(owner common.Hash, path []byte, hash common.Hash) ([]byte, error) {
	return n.get(hash)
}

var _ database.NodeDatabase = (*nodeDB)(nil)
