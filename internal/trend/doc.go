// Package trend compares the current run against the most recent valid snapshot
// in a history directory and manages the retention of those snapshots.
//
// Engine classifies history into one of the closed trend statuses and computes
// run and page deltas. Store writes new snapshots and prunes the oldest ones. The
// engine never writes history; the store never interprets it.
package trend
