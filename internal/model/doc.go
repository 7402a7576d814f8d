// Package model defines the JSON data model shared by the audit orchestrator,
// the trend engine, and the report renderer: step statuses, collaborator
// results, page summaries, run envelopes, and trend deltas.
package model
