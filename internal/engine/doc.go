// Package engine runs the employee sync and the portal-side operations.
//
// A sync run is strictly sequential:
//
//  1. resolve secrets
//  2. load the previous snapshot (empty when none exists)
//  3. load the system-of-record index and store directory
//  4. optionally trigger a portal export and poll for the file
//  5. read and normalize every export row; invalid rows are counted and
//     skipped
//  6. merge, compute the change set, commit it in chunks and persist the
//     new snapshot
//
// Any unrecovered failure aborts the run with a *RunError naming the kind of
// failure and the stage it happened in. No partial change set is returned.
//
// Every collaborator is passed to New; the package holds no client state.
package engine
