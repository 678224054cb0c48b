// Package execshell runs the external tools the synchronization engine
// depends on: git for repository mutation, the RCS merge tool for three-way
// text merges, and configured scrubber commands.
//
// ShellExecutor logs every invocation, reports lifecycle events to an
// optional observer, and converts non-zero exit codes into
// CommandFailedError so callers can inspect the captured output.
package execshell
