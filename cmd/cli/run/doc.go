// Package run implements the pageaudit run command. It merges configuration
// and flags into audit.RunOptions, wires the go-rod, axe-core, Lighthouse, and
// ImageMagick collaborators into audit.Service, and prints the verdict.
package run
