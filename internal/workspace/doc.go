// Package workspace manages the directory the mob data repository is cloned into.
//
// Ephemeral mode creates a unique temporary directory per build and removes
// it afterwards. Persistent mode reuses a fixed directory so that daemon
// rebuilds only fetch new commits.
package workspace
