// Package bookkeeping reconciles repository history with the ledger to describe what a run must do.
//
// Builder verifies stored equivalences, walks both histories back to a shared equivalence, retires
// migrations whose commits have landed, and collects the revisions still waiting to move in each
// direction. The result is a Book.
package bookkeeping
