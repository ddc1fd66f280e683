// Package ssg implements the two-phase asset model behind the site build.
//
// A build first enumerates every Asset (static pages, static files and one
// page per data record). Once the full list is known a Table maps every
// LogicalPath to its final output path. Only then are the asset Sources
// invoked; sources created with BytesWithTargets receive a Targets view of
// the completed Table so they can compute relative links to any other asset.
//
// Enumeration is fail-fast: a fetch failure or a path collision aborts the
// build with an *EnumerationError. Resolution is collect-all: each asset's
// failure is recorded in the Report against that asset and never stops its
// siblings.
package ssg
