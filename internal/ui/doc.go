// Package ui renders human-readable console output for audit runs.
//
// ConsoleStepLogger and ConsoleCommandEventLogger turn audit step and external
// tool events into concise log lines, and VerdictPrinter writes the colored
// pass or fail line that closes every run.
package ui
