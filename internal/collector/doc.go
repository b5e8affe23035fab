// Package collector implements the Prometheus collector for Emporia Vue
// energy usage.
//
// The collector package provides a background poller that periodically
// fetches per-channel usage from the Emporia cloud API, converts the
// one-minute kWh readings to watts, and caches them as a snapshot. A custom
// prometheus.Collector serves the snapshot on scrape; failed polls keep the
// previous snapshot in place so metrics go stale rather than disappearing.
package collector
