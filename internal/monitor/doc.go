// Package monitor renders a live terminal dashboard of the signal feed.
//
// The dashboard is a BubbleTea model that refreshes a Snapshot on a fixed
// interval and shows integration health, coverage, the category breakdown,
// a sparkline of feed volume across refreshes, and the newest signals.
// Where the Snapshot comes from is up to the caller.
package monitor
