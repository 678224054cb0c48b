// Package gitrepo implements the repository capabilities for Git.
//
// History, head resolution, and tree exports read a local clone through go-git.
// Clones and every mutation of an editor checkout run the git executable through
// the shell executor so that credentials and hooks behave as they do for an operator.
package gitrepo
