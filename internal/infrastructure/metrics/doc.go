// Package metrics exposes gateway counters in Prometheus format.
//
// Counters owned by other components (registry size, state machine and
// scanner statistics) are read at scrape time through Sources, so those
// components stay free of Prometheus types. Events only the supervisor
// sees (classifications, transitions, completed scans) are counted here.
package metrics
