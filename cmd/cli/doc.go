// Package cli constructs the pageaudit command-line interface. It wires the
// Cobra root command, the layered configuration loader, and zap logging, and
// maps command errors to process exit codes.
package cli
