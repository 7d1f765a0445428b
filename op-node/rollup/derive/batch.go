package derive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantlenetworkio/interop-proof/op-node/rollup"
	"github.com/mantlenetworkio/interop-proof/op-service/eth"
)

// Batch format
//
// SingularBatchType := 0
// singularBatch := SingularBatchType ++ RLP([parent_hash, epoch_number, epoch_hash, timestamp, transaction_list]
//
// SpanBatchType := 1
// Span batches are recognized by their type byte, but not decoded.

const (
	// SingularBatchType is the first version of Batch format, representing a single L2 block.
	SingularBatchType = 0
	// SpanBatchType is the Batch version used after Delta hard fork, representing a span of L2 blocks.
	SpanBatchType = 1
)

var (
	ErrTypedBatchTooShort   = errors.New("typed batch data too short")
	ErrUnsupportedSpanBatch = errors.New("span batches are not supported")
)

// SingularBatch is an implementation of Batch interface, containing the input to build one L2 block.
type SingularBatch struct {
	ParentHash   common.Hash
	EpochNum     rollup.Epoch
	EpochHash    common.Hash
	Timestamp    uint64
	Transactions []hexutil.Bytes
}

// GetBatchType returns its batch type (batch_version)
func (b *SingularBatch) GetBatchType() int {
	return SingularBatchType
}

// GetTimestamp returns its block timestamp
func (b *SingularBatch) GetTimestamp() uint64 {
	return b.Timestamp
}

// GetEpochNum returns its epoch number (L1 origin block number)
func (b *SingularBatch) GetEpochNum() rollup.Epoch {
	return b.EpochNum
}

// LogContext creates a new log context that contains information of the batch
func (b *SingularBatch) LogContext(log log.Logger) log.Logger {
	return log.New(
		"batch_type", "SingularBatch",
		"batch_timestamp", b.Timestamp,
		"parent_hash", b.ParentHash,
		"batch_epoch", b.Epoch(),
		"txs", len(b.Transactions),
	)
}

// Epoch returns a BlockID of its L1 origin.
func (b *SingularBatch) Epoch() eth.BlockID {
	return eth.BlockID{Hash: b.EpochHash, Number: uint64(b.EpochNum)}
}

// BatchData is used to represent the typed encoding & decoding.
// and wraps around a single interface InnerBatchData.
// Further fields such as cache can be added in the future, without embedding each type of InnerBatchData.
type BatchData struct {
	batchType int
	singular  *SingularBatch
}

func NewBatchData(batch *SingularBatch) *BatchData {
	return &BatchData{
		batchType: SingularBatchType,
		singular:  batch,
	}
}

// GetBatchType returns the type byte of the batch.
func (b *BatchData) GetBatchType() int {
	return b.batchType
}

// AsSingularBatch returns the decoded batch, only available for singular batches.
func (b *BatchData) AsSingularBatch() (*SingularBatch, bool) {
	return b.singular, b.batchType == SingularBatchType && b.singular != nil
}

// EncodeRLP implements rlp.Encoder
func (b *BatchData) EncodeRLP(w io.Writer) error {
	buf := new(bytes.Buffer)
	if err := b.encodeTyped(buf); err != nil {
		return err
	}
	return rlp.Encode(w, buf.Bytes())
}

// MarshalBinary returns the canonical encoding of the batch.
func (b *BatchData) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := b.encodeTyped(&buf)
	return buf.Bytes(), err
}

func (b *BatchData) encodeTyped(buf *bytes.Buffer) error {
	if b.batchType != SingularBatchType || b.singular == nil {
		return fmt.Errorf("%w: cannot encode batch type %d", ErrUnsupportedSpanBatch, b.batchType)
	}
	buf.WriteByte(SingularBatchType)
	return rlp.Encode(buf, b.singular)
}

// DecodeRLP implements rlp.Decoder
func (b *BatchData) DecodeRLP(s *rlp.Stream) error {
	if b == nil {
		return errors.New("cannot decode into nil BatchData")
	}
	v, err := s.Bytes()
	if err != nil {
		return err
	}
	return b.decodeTyped(v)
}

// UnmarshalBinary decodes the canonical encoding of batch.
func (b *BatchData) UnmarshalBinary(data []byte) error {
	if b == nil {
		return errors.New("cannot decode into nil BatchData")
	}
	return b.decodeTyped(data)
}

// decodeTyped decodes a typed batchData
func (b *BatchData) decodeTyped(data []byte) error {
	if len(data) == 0 {
		return ErrTypedBatchTooShort
	}
	b.batchType = int(data[0])
	switch data[0] {
	case SingularBatchType:
		var batch SingularBatch
		if err := rlp.DecodeBytes(data[1:], &batch); err != nil {
			return err
		}
		b.singular = &batch
		return nil
	case SpanBatchType:
		// The type is kept so that the reader can skip the batch and move on.
		b.singular = nil
		return nil
	default:
		return fmt.Errorf("unrecognized batch type: %d", data[0])
	}
}
