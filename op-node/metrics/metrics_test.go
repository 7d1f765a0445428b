package metrics

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	opmetrics "github.com/mantlenetworkio/interop-proof/op-service/metrics"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics("test")
	m.RecordInfo("v1.2.3")
	m.RecordUp()
	m.RecordL1Ref("l1_derived", eth.L1BlockRef{Hash: common.Hash{0x01}, Number: 42, Time: 1000})
	m.RecordDerivedBatches("singular")
	m.RecordDerivedBatches("singular")
	m.RecordDerivedAttributes(3)
	m.RecordL1RequestTime("InfoByHash", 20*time.Millisecond)
	m.L1SourceCache.CacheAdd("headers", 1, false)
	m.L1SourceCache.CacheGet("headers", true)

	checker := opmetrics.NewMetricChecker(t, m.Registry())
	ns := Namespace + "_test"

	require.Equal(t, 1.0, checker.Gauge(ns+"_info", map[string]string{"version": "v1.2.3"}))
	require.Equal(t, 42.0, checker.Gauge(ns+"_refs_number", map[string]string{"layer": "l1", "type": "l1_derived"}))
	require.Equal(t, 2.0, checker.Counter(ns+"_derived_batches", map[string]string{"type": "singular"}))
	require.Equal(t, 3.0, checker.Counter(ns+"_derived_txs", nil))
	require.Equal(t, uint64(1), checker.Observations(ns+"_l1_request_seconds", map[string]string{"request": "InfoByHash"}))

	require.Equal(t, 1.0, checker.Gauge(ns+"_l1_source_cache_size", map[string]string{"type": "headers"}))
	require.Equal(t, 1.0, checker.Counter(ns+"_l1_source_cache_get", map[string]string{"type": "headers", "hit": "true"}))
}

func TestNoopMetrics(t *testing.T) {
	require.NotPanics(t, func() {
		NoopMetrics.RecordL1Ref("l1_derived", eth.L1BlockRef{})
		NoopMetrics.RecordL2Ref("l2_safe", eth.L2BlockRef{})
		NoopMetrics.RecordDerivedAttributes(1)
	})
}
