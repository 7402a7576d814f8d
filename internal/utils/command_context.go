package utils

import (
	"context"
	"path/filepath"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
)

type commandContextKey string

// CommandContextAccessor stores and retrieves values shared between the root command and subcommands.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file actually loaded to the context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath extracts the loaded configuration file path from the context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, available := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	if !available || len(configurationFilePath) == 0 {
		return "", false
	}
	return configurationFilePath, true
}

// ResolveRelativeToConfiguration anchors a relative path at the directory of the loaded
// configuration file. Absolute paths, and all paths when no file was loaded, are returned unchanged.
func (accessor CommandContextAccessor) ResolveRelativeToConfiguration(executionContext context.Context, candidatePath string) string {
	if len(candidatePath) == 0 || filepath.IsAbs(candidatePath) {
		return candidatePath
	}
	configurationFilePath, available := accessor.ConfigurationFilePath(executionContext)
	if !available {
		return candidatePath
	}
	return filepath.Join(filepath.Dir(configurationFilePath), candidatePath)
}
