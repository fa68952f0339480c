// Package signal defines the unified data model shared by every source
// adapter and the aggregation manager.
//
// A Signal is one attention-worthy item (a blocked teammate, an overdue task,
// a customer complaint) normalized into a closed category taxonomy with a
// confidence score in [0,1]. Adapters implement the Adapter interface and
// return signals already classified and filtered; nothing in this package
// performs I/O.
//
// # Identity
//
// Signal IDs are namespaced by source ("slack-C123:1700000000.000100") and
// are stable across repeated fetches of the same upstream item. Signals are
// otherwise created fresh on every fetch.
//
// # Health
//
// IntegrationHealth describes an adapter's connectivity at a point in time.
// Use the constructors (Healthy, ErrorStatus, NotConfigured) or
// Normalize so that the status invariants hold:
//
//   - StatusError implies Connected == false
//   - StatusDegraded implies Connected == true and MissingScopes is non-empty
package signal
