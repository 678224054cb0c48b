// Package merge reconciles a generated codebase with the destination's public codebase through a
// three-way merge against the previously generated codebase.
package merge
