// Package main implements the Emporia Vue Prometheus exporter.
//
// The exporter logs in to the Emporia cloud with the account credentials
// from the environment, polls per-channel energy usage once per interval,
// and serves the latest readings as the per_min_usage_total_watt gauge on
// /metrics. A failed poll keeps serving the previous readings until the
// next successful one.
package main
