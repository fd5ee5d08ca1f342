// Package rng provides the deterministic, reproducible randomness used
// to resolve nondeterministic choices during execution.
//
// A Seed is an arbitrary-precision integer that is always surfaced to
// the caller, even when auto-generated. Sub-streams are forked from the
// seed by label and index through a domain-separated hash, so attempt i
// of a run (or test "foo" of a suite) always sees the same draws no
// matter which other attempts or tests run around it.
package rng
