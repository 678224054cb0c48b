// Package cli constructs the codesync command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the synchronization commands.
package cli
