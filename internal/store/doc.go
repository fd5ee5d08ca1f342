// Package store is the optional run archive: a SQLite database that
// records every engine invocation (module, seed, budgets, status) and
// its retained traces as interchange JSON. Any archived failure can be
// reproduced later from the recorded seed.
//
// SQLite supports one writer at a time; the store keeps a single
// connection and writes each run in one transaction.
package store
