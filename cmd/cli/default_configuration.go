package cli

import _ "embed"

// default_config.yaml seeds the loader before the user's file and PAGEAUDIT_* overrides.
//
//go:embed default_config.yaml
var embeddedAuditDefaults []byte

// EmbeddedDefaultConfiguration returns a private copy of the audit defaults along
// with the configuration type viper should parse them as.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), embeddedAuditDefaults...), configurationTypeConstant
}
