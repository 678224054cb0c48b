// Package codebase models materialized snapshots of repository trees and
// compares them file by file.
//
// A Codebase is a directory tagged with the project space its contents follow.
// AreCodebasesDifferent decides whether a migration is a no-op and whether a
// recorded equivalence still holds; it never short-circuits, so the returned
// CodebaseDifference lists every differing path.
package codebase
