// Package harness runs paging scenarios described in YAML against a real
// engine and checks their expectations.
//
// A scenario declares a set of in-memory sources (pages of integers,
// optional failing pages and live pages), the initial chain, and a list of
// steps. Each step drives one engine operation:
//
//	load           one load in a direction
//	drain          loads until the chain is exhausted or a load fails
//	invalidate     drops pages (behavior all|keep_first)
//	set_sources    replaces the chain (diff sequential|lcs)
//	add_source     inserts a source at an index
//	remove_source  removes a source
//	move_source    moves a source to an index
//	push           sends a live update to a loaded page and waits for it
//
// Every published batch is rendered into a text trace with paging.Describe.
// RunWithGolden compares that trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
