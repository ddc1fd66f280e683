// Package build drives one complete site build for the CLI and the daemon.
//
// A build runs the stages enumerate, targets, resolve, verify_links and write
// in order. Enumeration failures are fatal and abort the build before any
// asset is resolved. Per-asset failures and broken links never stop the
// remaining stages; build.fail_on_asset_error decides afterwards whether they
// fail the build (output not promoted) or only make it partial.
package build
