// Package sim contains the drivers that decide how many attempts to
// make and what to do with them: the simulation driver samples bounded
// random executions looking for an invariant violation, and the test
// driver samples named boolean tests looking for a failure.
//
// Both drivers run attempts strictly one after another. Every attempt
// draws from its own forked random sub-stream and observes nothing of
// any other attempt, so a parallel reimplementation only has to give
// each worker its own fork and serialize access to the trace keeper.
// Cancellation is checked between attempts, never mid-attempt, so a
// partial attempt is never reported as a trace.
package sim
