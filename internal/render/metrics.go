package render

import "github.com/hashicorp/go-metrics"

var (
	MetricRenderStarted  = []string{"natrender", "render", "started", "count"}
	MetricRenderFinished = []string{"natrender", "render", "finished", "count"}
	MetricRenderFailed   = []string{"natrender", "render", "failed", "count"}
	MetricRenderRejected = []string{"natrender", "render", "rejected", "count"}
	MetricRenderQueued   = []string{"natrender", "render", "queued", "count"}
	MetricRenderDuration = []string{"natrender", "render", "duration", "seconds"}
	MetricRegistryActive = []string{"natrender", "registry", "active"}
	MetricRegistryQueued = []string{"natrender", "registry", "pending"}
)

const labelMode = "mode"

func modeLabel(mode Mode) []metrics.Label {
	return []metrics.Label{{Name: labelMode, Value: string(mode)}}
}

func (d *Dispatcher) recordGauges() {
	active, pending := d.registry.Counts()
	d.sink.SetGauge(MetricRegistryActive, float32(active))
	d.sink.SetGauge(MetricRegistryQueued, float32(pending))
}
