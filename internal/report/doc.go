// Package report accumulates what a codesync run did and what a human must do next.
//
// Steps record work performed, TODOs record action items, and the return code
// becomes the process exit status: 0 when nothing needed migrating, 1 when a
// change was produced, and 2 when human intervention is required.
package report
