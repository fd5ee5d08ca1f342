// Package trace holds what the engine remembers about execution:
// per-step explanation frames, per-attempt traces, the bounded keeper
// that retains the best traces across many attempts, and the
// interchange (ITF) encoding used to exchange counterexamples with
// other tools.
//
// Frames are optional: they exist to explain a result, never to compute
// it, and are omitted entirely when explanation verbosity is off.
package trace
