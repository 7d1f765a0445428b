package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	service "github.com/mantlenetworkio/interop-proof/op-service"
	oplog "github.com/mantlenetworkio/interop-proof/op-service/log"
	"github.com/mantlenetworkio/interop-proof/op-service/sources"
)

const EnvVarPrefix = "OP_INTEROP_CLIENT"

func prefixEnvVars(name string) []string {
	return service.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	DataDir = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Directory of the pre-image database to verify against",
		EnvVars:  prefixEnvVars("DATADIR"),
		Required: true,
	}
	BootFile = &cli.PathFlag{
		Name:     "boot",
		Usage:    "TOML file with the boot inputs and chain config paths of the verification",
		EnvVars:  prefixEnvVars("BOOT"),
		Required: true,
	}
)

var (
	L1NodeAddr = &cli.StringFlag{
		Name:     "l1",
		Usage:    "Address of L1 JSON-RPC endpoint to use (eth namespace required)",
		EnvVars:  prefixEnvVars("L1_RPC"),
		Required: true,
	}
	L1TrustRPC = &cli.BoolFlag{
		Name:    "l1.trustrpc",
		Usage:   "Trust the L1 RPC, sync faster at risk of malicious/buggy RPC providing bad or inconsistent L1 data",
		EnvVars: prefixEnvVars("L1_TRUST_RPC"),
	}
	L1ReceiptsMethod = &cli.GenericFlag{
		Name: "l1.receipts-method",
		Usage: fmt.Sprintf("The RPC method used to fetch L1 receipts. Available methods: %s",
			strings.Join(sources.ReceiptsFetchingMethods(), ", ")),
		EnvVars: prefixEnvVars("L1_RECEIPTS_METHOD"),
		Value: func() *sources.ReceiptsFetchingMethod {
			out := sources.EthGetBlockReceipts
			return &out
		}(),
	}
	L1BeaconAddr = &cli.StringFlag{
		Name:     "l1.beacon",
		Usage:    "Address of L1 Beacon API endpoint to use",
		EnvVars:  prefixEnvVars("L1_BEACON_API"),
		Required: true,
	}
	L1BeaconFallbackAddrs = &cli.StringSliceFlag{
		Name:    "l1.beacon-fallbacks",
		Usage:   "Addresses of L1 Beacon API endpoints to fetch blob sidecars from when the primary fails",
		EnvVars: prefixEnvVars("L1_BEACON_FALLBACKS"),
	}
	L2NodeAddr = &cli.StringFlag{
		Name:     "l2",
		Usage:    "Address of L2 JSON-RPC endpoint to use (eth namespace required)",
		EnvVars:  prefixEnvVars("L2_RPC"),
		Required: true,
	}
	L2TrustRPC = &cli.BoolFlag{
		Name:    "l2.trustrpc",
		Usage:   "Trust the L2 RPC, skipping block hash verification of fetched blocks",
		EnvVars: prefixEnvVars("L2_TRUST_RPC"),
	}
	RollupConfig = &cli.PathFlag{
		Name:     "rollup.config",
		Usage:    "Rollup chain parameters",
		EnvVars:  prefixEnvVars("ROLLUP_CONFIG"),
		Required: true,
	}
	L1ChainConfig = &cli.PathFlag{
		Name:    "l1.chainconfig",
		Usage:   "L1 chain config file (path to genesis.json). Defaults to the known config of the rollup's L1 chain",
		EnvVars: prefixEnvVars("L1_CHAINCONFIG"),
	}
	L2Start = &cli.Uint64Flag{
		Name:     "l2.start",
		Usage:    "Canonical L2 block number to derive on top of",
		EnvVars:  prefixEnvVars("L2_START"),
		Required: true,
	}
	Count = &cli.Uint64Flag{
		Name:    "count",
		Usage:   "Number of L2 blocks to derive and check. Zero derives until the L1 data is exhausted",
		EnvVars: prefixEnvVars("COUNT"),
		Value:   1,
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics.addr",
		Usage:   "host:port to serve prometheus metrics on while deriving. Disabled if empty",
		EnvVars: prefixEnvVars("METRICS_ADDR"),
	}
)

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

var VerifyFlags = []cli.Flag{
	DataDir,
	BootFile,
}

var DeriveFlags = []cli.Flag{
	L1NodeAddr,
	L1TrustRPC,
	L1ReceiptsMethod,
	L1BeaconAddr,
	L1BeaconFallbackAddrs,
	L2NodeAddr,
	L2TrustRPC,
	RollupConfig,
	L1ChainConfig,
	L2Start,
	Count,
	MetricsAddr,
}

func init() {
	Flags = oplog.CLIFlags(EnvVarPrefix)
}
