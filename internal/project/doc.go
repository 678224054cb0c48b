// Package project loads and validates the configuration of one synchronized project: its two
// repositories, the translators between their project spaces, and the strategy of each direction.
package project
