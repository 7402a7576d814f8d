// Package audit orchestrates page audits across one or more targets.
//
// It resolves targets into deterministic output locations, drives every target
// through the browser, accessibility, screenshot, performance, and visual steps
// via pluggable collaborators, derives step statuses, aggregates page results into
// a run rollup, and writes versioned summary envelopes. Service ties these pieces
// together with the trend engine for a complete run.
package audit
