// Package aggregate holds the Manager: the registry of active adapters and
// the three operations consumers use.
//
//   - GetHealth checks every adapter concurrently. A failing or panicking
//     adapter becomes an error record for its source only.
//   - FetchAllSignals fetches from every adapter concurrently and merges the
//     results newest first. Adapter failures are logged and contribute
//     nothing.
//   - AssessCoverage scores how much of the workspace the registry can see.
//
// None of the three returns an error. The registry only changes through
// Register.
package aggregate
