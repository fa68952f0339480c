// Package classify maps raw chat messages, tasks, and customer messages
// into the signal category taxonomy using deterministic rules.
//
// The package supports:
//   - A noise filter that drops greetings, acknowledgements, and short chatter
//   - An ordered chat rule table evaluated first-match-wins
//   - A task ladder driven by due dates, tags, and keywords
//   - A business-messaging classifier for customer-facing channels
//
// # Rule Tables
//
// Chat and task rules are exported as ordered slices (ChatRules, TaskRules).
// Each rule pairs a predicate with a category and a fixed confidence, so the
// table itself can be inspected and tested without going through an adapter:
//
//	for _, r := range classify.ChatRules() {
//	    fmt.Printf("%-12s %-10s %.2f\n", r.Name, r.Category, r.Confidence)
//	}
//
// # Thresholds
//
// ChatConfidenceThreshold is applied by chat adapters only. Task results are
// never gated; a low-confidence task still surfaces.
//
// Nothing in this package performs I/O or keeps state between calls.
package classify
