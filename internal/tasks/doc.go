// Package tasks implements library synchronization between streaming accounts.
//
// The core abstraction is [SyncEngine], which captures a profile's library
// into snapshot files, compares a snapshot against the live state of a
// target profile, and reconciles the difference by importing what is
// missing. Operations emit [Event] values through a [Reporter] for
// non-blocking status reporting to CLI/UI layers.
//
// # Categories
//
// A library has four categories, always processed in the same order:
// watchlist, named lists, ratings, then watch history. History goes last
// because marking content watched is the slowest write path.
//
// # Reconciliation
//
// Import pre-filters each category against a [TargetState] fetched once up
// front, so items already on the target are never written. Remaining writes
// go through a bounded worker pool with a fixed delay after every write.
// Failed writes retry with exponential backoff per [RetryPolicy]; conflict
// responses count the item as already present and are never retried.
package tasks
