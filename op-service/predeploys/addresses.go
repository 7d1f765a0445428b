package predeploys

import "github.com/ethereum/go-ethereum/common"

const (
	L1Block             = "0x4200000000000000000000000000000000000015"
	SequencerFeeVault   = "0x4200000000000000000000000000000000000011"
	L2ToL1MessagePasser = "0x4200000000000000000000000000000000000016"
	BaseFeeVault        = "0x4200000000000000000000000000000000000019"
	L1FeeVault          = "0x420000000000000000000000000000000000001a"
)

var (
	L1BlockAddr             = common.HexToAddress(L1Block)
	SequencerFeeVaultAddr   = common.HexToAddress(SequencerFeeVault)
	L2ToL1MessagePasserAddr = common.HexToAddress(L2ToL1MessagePasser)
	BaseFeeVaultAddr        = common.HexToAddress(BaseFeeVault)
	L1FeeVaultAddr          = common.HexToAddress(L1FeeVault)

	// L1InfoDepositerAddress is the system address that sends the L1 info deposit of every L2 block.
	L1InfoDepositerAddress = common.HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001")
)
