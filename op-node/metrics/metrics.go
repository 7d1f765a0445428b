// Package metrics provides the prometheus metrics of the derivation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mantlenetworkio/interop-proof/op-service/eth"
	opmetrics "github.com/mantlenetworkio/interop-proof/op-service/metrics"
)

const Namespace = "op_interop_client"

type Metricer interface {
	RecordInfo(version string)
	RecordUp()
	RecordL1Ref(name string, ref eth.L1BlockRef)
	RecordL2Ref(name string, ref eth.L2BlockRef)
	RecordChannelInputBytes(inputCompressedBytes int)
	RecordHeadChannelOpened()
	RecordChannelTimedOut()
	RecordFrame()
	RecordDerivedBatches(batchType string)
	RecordL1RequestTime(method string, duration time.Duration)
	RecordDerivedAttributes(numTxs int)
}

// Metrics tracks all the metrics for the derivation pipeline.
type Metrics struct {
	Info *prometheus.GaugeVec
	Up   prometheus.Gauge

	opmetrics.RefMetrics

	DerivedBatches    *prometheus.CounterVec
	DerivedAttributes prometheus.Counter
	DerivedTxs        prometheus.Counter

	FrameAdded        prometheus.Counter
	HeadChannelOpened prometheus.Counter
	ChannelTimedOut   prometheus.Counter
	ChannelInputBytes prometheus.Counter

	L1RequestDurationSeconds *prometheus.HistogramVec

	L1SourceCache *opmetrics.CacheMetrics
	L2SourceCache *opmetrics.CacheMetrics

	registry *prometheus.Registry
	factory  opmetrics.Factory
}

var _ Metricer = (*Metrics)(nil)

// NewMetrics creates a new Metrics instance with the given process name.
func NewMetrics(procName string) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)

	return &Metrics{
		Info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		Up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if the derivation service has finished starting up",
		}),

		RefMetrics: opmetrics.MakeRefMetrics(ns, factory),

		DerivedBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "derived_batches",
			Help:      "Count of batches decoded from channels, by batch type",
		}, []string{
			"type",
		}),
		DerivedAttributes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "derived_attributes",
			Help:      "Count of payload attributes produced by the pipeline",
		}),
		DerivedTxs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "derived_txs",
			Help:      "Count of transactions in the produced payload attributes",
		}),

		FrameAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "derivation",
			Name:      "frame_added",
			Help:      "Counts the number of frames added to the channel bank",
		}),
		HeadChannelOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "derivation",
			Name:      "head_channel_opened",
			Help:      "Counts the number of channels opened in the channel bank",
		}),
		ChannelTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "derivation",
			Name:      "channel_timed_out",
			Help:      "Counts the number of channels that timed out",
		}),
		ChannelInputBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "derivation",
			Name:      "channel_input_bytes",
			Help:      "Number of compressed bytes added to the channel reader",
		}),

		L1RequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "l1_request_seconds",
			Buckets: []float64{
				.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			Help: "Histogram of L1 request time",
		}, []string{"request"}),

		L1SourceCache: opmetrics.NewCacheMetrics(factory, ns, "l1_source_cache", "L1 Source cache"),
		L2SourceCache: opmetrics.NewCacheMetrics(factory, ns, "l2_source_cache", "L2 Source cache"),

		registry: registry,
		factory:  factory,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInfo sets a pseudo-metric that contains versioning and config info.
func (m *Metrics) RecordInfo(version string) {
	m.Info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.Up.Set(1)
}

func (m *Metrics) RecordChannelInputBytes(inputCompressedBytes int) {
	m.ChannelInputBytes.Add(float64(inputCompressedBytes))
}

func (m *Metrics) RecordHeadChannelOpened() {
	m.HeadChannelOpened.Inc()
}

func (m *Metrics) RecordChannelTimedOut() {
	m.ChannelTimedOut.Inc()
}

func (m *Metrics) RecordFrame() {
	m.FrameAdded.Inc()
}

func (m *Metrics) RecordDerivedBatches(batchType string) {
	m.DerivedBatches.WithLabelValues(batchType).Inc()
}

func (m *Metrics) RecordDerivedAttributes(numTxs int) {
	m.DerivedAttributes.Inc()
	m.DerivedTxs.Add(float64(numTxs))
}

func (m *Metrics) RecordL1RequestTime(method string, duration time.Duration) {
	m.L1RequestDurationSeconds.WithLabelValues(method).Observe(float64(duration) / float64(time.Second))
}

// StartServer starts the metrics server on the given hostname and port.
func (m *Metrics) StartServer(hostname string, port int) (*opmetrics.Server, error) {
	return opmetrics.StartServer(m.registry, hostname, port)
}

type noopMetricer struct {
	opmetrics.NoopRefMetrics
}

// NoopMetrics is a Metricer that records nothing, used where derivation runs without a metrics endpoint.
var NoopMetrics Metricer = new(noopMetricer)

func (n *noopMetricer) RecordInfo(version string)                 {}
func (n *noopMetricer) RecordUp()                                 {}
func (n *noopMetricer) RecordChannelInputBytes(int)               {}
func (n *noopMetricer) RecordHeadChannelOpened()                  {}
func (n *noopMetricer) RecordChannelTimedOut()                    {}
func (n *noopMetricer) RecordFrame()                              {}
func (n *noopMetricer) RecordDerivedBatches(string)               {}
func (n *noopMetricer) RecordDerivedAttributes(int)               {}
func (n *noopMetricer) RecordL1RequestTime(string, time.Duration) {}
