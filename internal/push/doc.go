// Package push copies a codebase into a destination editor and finalizes the change with a commit
// message that carries the migration marker.
package push
