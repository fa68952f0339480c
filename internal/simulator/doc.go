// Package simulator provides an Adapter that produces synthetic signals and
// health records without credentials or network access.
//
// Synthetic items are canned chat messages, tasks, and customer messages run
// through the real classifiers, so simulated output has the same shape as a
// live adapter's. Signal ids are derived from the source and item index and
// stay stable across fetches.
//
// Failure modes (fetch error, panic, latency, any health status) are
// configurable so callers can exercise partial-failure handling.
package simulator
