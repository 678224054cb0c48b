// Package manage wires a project's repositories, translators, ledger, and merge tool into an
// Environment and runs the operations exposed by the command line against it.
package manage
