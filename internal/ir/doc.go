// Package ir provides the runtime value model and flattened module
// representation consumed by the execution engine.
//
// This package contains type definitions and pure structural operations
// only. All other internal packages import ir; ir imports nothing
// internal. This keeps the IR the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - NO float types anywhere - integers are arbitrary precision
//   - Values are immutable; every update constructs a new value
//   - Equality and ordering are structural and total across all kinds
//   - Canonical encoding is byte-stable across platforms and runs
package ir
