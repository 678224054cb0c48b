// Package repository declares the capabilities a source control backend provides
// to the synchronization engine and materializes codebases from them.
package repository
