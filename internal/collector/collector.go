package collector

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var usageLabelNames = []string{"device", "channel_num", "device_name", "device_gid"}

// usageSource is the snapshot owner the collector reads from. Satisfied by
// *Poller.
type usageSource interface {
	Snapshot() []Reading
	Status() (lastPoll, lastSuccess time.Time, lastErr error)
	Counters() (polls, failures float64)
}

// VueCollector exposes the poller's snapshot as Prometheus metrics.
type VueCollector struct {
	source usageSource
	logger *slog.Logger

	usageWatts    *prometheus.Desc
	up            *prometheus.Desc
	lastPollTS    *prometheus.Desc
	lastSuccessTS *prometheus.Desc
	pollsTotal    *prometheus.Desc
	pollErrors    *prometheus.Desc
	devices       *prometheus.Desc
}

// NewVueCollector creates a collector reading from the given poller.
func NewVueCollector(source usageSource, logger *slog.Logger) *VueCollector {
	return &VueCollector{
		source: source,
		logger: logger,

		usageWatts: prometheus.NewDesc(
			"per_min_usage_total_watt",
			"Total usage for channel in watts.",
			usageLabelNames, nil,
		),
		up: prometheus.NewDesc(
			"vue_up",
			"Whether the most recent poll of the Emporia API succeeded (1 = success, 0 = failure)",
			nil, nil,
		),
		lastPollTS: prometheus.NewDesc(
			"vue_last_poll_timestamp_seconds",
			"Unix timestamp of the last poll attempt",
			nil, nil,
		),
		lastSuccessTS: prometheus.NewDesc(
			"vue_last_success_timestamp_seconds",
			"Unix timestamp of the last successful poll",
			nil, nil,
		),
		pollsTotal: prometheus.NewDesc(
			"vue_polls_total",
			"Total number of poll attempts",
			nil, nil,
		),
		pollErrors: prometheus.NewDesc(
			"vue_poll_errors_total",
			"Total number of failed polls",
			nil, nil,
		),
		devices: prometheus.NewDesc(
			"vue_devices",
			"Number of devices in the current snapshot",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *VueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usageWatts
	ch <- c.up
	ch <- c.lastPollTS
	ch <- c.lastSuccessTS
	ch <- c.pollsTotal
	ch <- c.pollErrors
	ch <- c.devices
}

// Collect implements prometheus.Collector. It reads one snapshot copy, so a
// scrape never mixes readings from two different polls.
func (c *VueCollector) Collect(ch chan<- prometheus.Metric) {
	c.logger.Debug("Prometheus scrape started")

	snapshot := c.source.Snapshot()
	lastPoll, lastSuccess, lastErr := c.source.Status()
	polls, failures := c.source.Counters()

	upValue := 0.0
	if lastErr == nil && !lastPoll.IsZero() {
		upValue = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, upValue)
	ch <- prometheus.MustNewConstMetric(c.pollsTotal, prometheus.CounterValue, polls)
	ch <- prometheus.MustNewConstMetric(c.pollErrors, prometheus.CounterValue, failures)

	if !lastPoll.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastPollTS, prometheus.GaugeValue, float64(lastPoll.Unix()))
	}
	if !lastSuccess.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastSuccessTS, prometheus.GaugeValue, float64(lastSuccess.Unix()))
	}

	gids := make(map[int]struct{})
	for _, reading := range snapshot {
		gids[reading.DeviceGID] = struct{}{}
		ch <- prometheus.MustNewConstMetric(
			c.usageWatts,
			prometheus.GaugeValue,
			reading.Watts,
			reading.Device,
			reading.ChannelNum,
			reading.DeviceName,
			strconv.Itoa(reading.DeviceGID),
		)
	}
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(len(gids)))

	c.logger.Debug("Prometheus scrape completed", "channels", len(snapshot))
}
