// Package retry runs operations with bounded attempts and configurable backoff:
// constant, exponential with a cap, and bounded decorrelated jitter.
package retry
