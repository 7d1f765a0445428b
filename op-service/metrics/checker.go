package metrics

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// MetricChecker gathers a registry once, and looks up single series by family name and labels.
// Failed lookups fail the test.
type MetricChecker struct {
	t        require.TestingT
	families map[string]*gocl.MetricFamily
}

func NewMetricChecker(t require.TestingT, reg prometheus.Gatherer) *MetricChecker {
	families, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	byName := make(map[string]*gocl.MetricFamily, len(families))
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}
	return &MetricChecker{t: t, families: byName}
}

// Series returns the only series of the named family that carries all the given labels.
func (c *MetricChecker) Series(name string, labels map[string]string) *gocl.Metric {
	fam, ok := c.families[name]
	require.Truef(c.t, ok, "no metric family %q", name)
	var found *gocl.Metric
	for _, m := range fam.GetMetric() {
		if !hasLabels(m, labels) {
			continue
		}
		require.Nilf(c.t, found, "family %q has more than one series with labels %v", name, labels)
		found = m
	}
	require.NotNilf(c.t, found, "family %q has no series with labels %v", name, labels)
	return found
}

func (c *MetricChecker) Gauge(name string, labels map[string]string) float64 {
	return c.Series(name, labels).GetGauge().GetValue()
}

func (c *MetricChecker) Counter(name string, labels map[string]string) float64 {
	return c.Series(name, labels).GetCounter().GetValue()
}

// Observations is the sample count of a histogram series.
func (c *MetricChecker) Observations(name string, labels map[string]string) uint64 {
	return c.Series(name, labels).GetHistogram().GetSampleCount()
}

// Dump renders the gathered families as indented JSON, for debugging a failed lookup.
func (c *MetricChecker) Dump() string {
	out, _ := json.MarshalIndent(c.families, "", "  ")
	return string(out)
}

func hasLabels(m *gocl.Metric, labels map[string]string) bool {
	for k, v := range labels {
		matched := false
		for _, pair := range m.GetLabel() {
			if pair.GetName() == k && pair.GetValue() == v {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
