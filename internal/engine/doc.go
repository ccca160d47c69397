// Package engine runs a registry of weighted checks against a resolved
// connection and produces exactly one result record per check.
//
// # Isolation
//
// Each check predicate returns an explicit compare.Outcome or an error. The
// runner converts both, and any panic, into a report.Record at its boundary:
// a bug or transient condition in one check never prevents the remaining
// checks from running or being scored.
//
//	N checks in, exactly N records out.
//
// # Ordering
//
// Records are returned in registration order. With Options.Workers > 1 the
// checks run on a bounded pool, each writing to its own pre-sized slot, so
// the output never depends on completion order and reports diff cleanly
// between runs.
//
// # Scoring
//
// A passing predicate scores the check's weight; anything else scores zero.
// Hence sum(score) <= sum(maximum) for every run.
package engine
