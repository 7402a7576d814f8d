// Package utils holds the configuration loader, logger factory, and command
// context helpers shared by the pageaudit commands.
package utils
