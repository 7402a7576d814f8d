// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with zap logging, lifecycle observers, and
// typed errors. OSCommandRunner is the default os/exec backed runner. The audit
// collaborators use it to run the Lighthouse CLI and ImageMagick compare.
package execshell
