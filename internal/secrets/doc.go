// Package secrets detects and redacts credentials that people paste into
// chat messages, task notes, and customer conversations.
//
// Adapters run every title and snippet through a Scrubber before a signal
// leaves the process. Findings keep the rule id and position but never the
// matched value.
package secrets
