package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestUserDepositSourceDiffersFromL1Info(t *testing.T) {
	blockHash := common.HexToHash("0xc00e5d67c2755389aded7d8b151cbd5bcdf7ed275ad5e028b664880fc7581c77")
	user := UserDepositSource{L1BlockHash: blockHash, LogIndex: 4}
	info := L1InfoDepositSource{L1BlockHash: blockHash, SeqNumber: 4}
	assert.NotEqual(t, user.SourceHash(), info.SourceHash())

	other := UserDepositSource{L1BlockHash: blockHash, LogIndex: 5}
	assert.NotEqual(t, user.SourceHash(), other.SourceHash())
}

// TestL1InfoDepositSource
// cast keccak $(cast concat-hex 0x0000000000000000000000000000000000000000000000000000000000000001 $(cast keccak $(cast concat-hex 0xc00e5d67c2755389aded7d8b151cbd5bcdf7ed275ad5e028b664880fc7581c77 0x0000000000000000000000000000000000000000000000000000000000000004)))
// # 0x0586c503340591999b8b38bc9834bb16aec7d5bc00eb5587ab139c9ddab81977
func TestL1InfoDepositSource(t *testing.T) {
	source := L1InfoDepositSource{
		L1BlockHash: common.HexToHash("0xc00e5d67c2755389aded7d8b151cbd5bcdf7ed275ad5e028b664880fc7581c77"),
		SeqNumber:   4,
	}

	actual := source.SourceHash()
	expected := "0x0586c503340591999b8b38bc9834bb16aec7d5bc00eb5587ab139c9ddab81977"

	assert.Equal(t, expected, actual.Hex())
}
