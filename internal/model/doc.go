// Package model defines the revisions, correspondences, migrations, and
// strategies shared by the bookkeeping, ledger, and migration packages.
package model
