// Package eval interprets a flattened module's expression tree against
// an execution context, resolving nondeterministic choices through the
// seeded random source.
//
// The contract is Apply(action, context) -> (holds, nextContext, frame,
// error). Entropy is consumed in a fixed order determined by expression
// structure, so replaying a seed against the same module reproduces the
// outcome bit for bit. Assignments made anywhere inside one application
// commit atomically: the next context exists only if the whole action
// held, otherwise the current context is returned untouched.
package eval
