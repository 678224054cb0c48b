// Package actions runs a project synchronization as a queue of steps.
//
// An Interpreter pops one Action at a time and executes it against a shared RunContext. An action
// may return a StateUpdate that replaces the rest of the queue; this is how a Migration schedules
// its follow-up batches and the equivalence checks of the commits it produced.
package actions
