// Package git keeps a local checkout of the repository holding mob records.
//
// The checkout is a read-only mirror: Sync clones it when missing and
// otherwise fetches and hard-resets the configured branch to the remote head.
package git
