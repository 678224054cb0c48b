// Package ledger records equivalences, migrations, noted revisions, and run locks for a project.
//
// Two stores implement Ledger: HTTPLedger talks to a ledger service over its JSON API and
// SQLiteLedger keeps the same records in a local database file. ProcessLock layers the
// advisory per-project run lock with a periodic keepalive on top of either store.
package ledger
