package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceStats provides the metrics collector access to live service state.
type ServiceStats interface {
	ActiveTempFiles() int
	InFlight() int
	Waiting() int
	ModelLoaded() bool
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats ServiceStats

	tempFiles   *prometheus.Desc
	inFlight    *prometheus.Desc
	waiting     *prometheus.Desc
	modelLoaded *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (metrics will report 0).
func NewCollector(stats ServiceStats) *Collector {
	return &Collector{
		stats: stats,
		tempFiles: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "temp_files_active"),
			"Uploaded audio files currently staged on disk.",
			nil, nil,
		),
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "inference", "in_flight"),
			"Model inference calls currently running.",
			nil, nil,
		),
		waiting: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "inference", "waiting"),
			"Requests waiting for an inference slot.",
			nil, nil,
		),
		modelLoaded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "model_loaded"),
			"1 if the speech-to-text model loaded at startup, 0 otherwise.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tempFiles
	ch <- c.inFlight
	ch <- c.waiting
	ch <- c.modelLoaded
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		ch <- prometheus.MustNewConstMetric(c.tempFiles, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.modelLoaded, prometheus.GaugeValue, 0)
		return
	}

	loaded := 0.0
	if c.stats.ModelLoaded() {
		loaded = 1
	}
	ch <- prometheus.MustNewConstMetric(c.tempFiles, prometheus.GaugeValue, float64(c.stats.ActiveTempFiles()))
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(c.stats.InFlight()))
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(c.stats.Waiting()))
	ch <- prometheus.MustNewConstMetric(c.modelLoaded, prometheus.GaugeValue, loaded)
}
