package audit

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	pagesDirectoryNameConstant              = "pages"
	targetDirectoryTemplateConstant         = "%02d-%s"
	slugFallbackConstant                    = "page"
	slugSeparatorConstant                   = "-"
	schemeHTTPConstant                      = "http"
	schemeHTTPSConstant                     = "https"
	localhostHostnameConstant               = "localhost"
	localhostSuffixConstant                 = ".localhost"
	missingTargetsReasonConstant            = "no audit target provided; pass a URL argument or configure audit.url or audit.targets"
	invalidTargetURLReasonTemplateConstant  = "target %q has an invalid URL %q: %v"
	blankTargetURLReasonTemplateConstant    = "target %q has no URL"
	unsupportedSchemeReasonTemplateConstant = "target %q uses unsupported scheme %q; only http and https are allowed"
	missingHostReasonTemplateConstant       = "target %q URL %q has no host"
	outsidePermittedRootReasonTemplate      = "output directory %q is outside the permitted root %q"
	unresolvableDirectoryReasonTemplate     = "unable to resolve directory %q: %v"
	missingOutputDirectoryReasonConstant    = "output directory is required"
	privateAddressWarningMessageConstant    = "Target URL points at a private or local address"
	targetNameLogFieldConstant              = "target_name"
	targetURLLogFieldConstant               = "target_url"
)

var slugDisallowedCharactersPattern = regexp.MustCompile(`[^a-z0-9]+`)

// TargetResolutionInput captures the sources targets are resolved from.
type TargetResolutionInput struct {
	URL               string
	Targets           []TargetDefinition
	OutputDirectory   string
	BaselineDirectory string
	PermittedRoot     string
}

// ResolveTargets turns configured targets or a lone URL into an ordered list of
// audit targets with their output and baseline directories. Configured targets
// take precedence over the URL. With more than one target every target nests
// under pages/<NN>-<slug>; a single target uses the run directories directly.
func ResolveTargets(input TargetResolutionInput, logger *zap.Logger) ([]AuditTarget, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	outputDirectory := strings.TrimSpace(input.OutputDirectory)
	if len(outputDirectory) == 0 {
		return nil, UsageError{Reason: missingOutputDirectoryReasonConstant}
	}
	if permittedRootError := ensureWithinPermittedRoot(outputDirectory, input.PermittedRoot); permittedRootError != nil {
		return nil, permittedRootError
	}

	definitions := collectTargetDefinitions(input)
	if len(definitions) == 0 {
		return nil, UsageError{Reason: missingTargetsReasonConstant}
	}

	multipleTargets := len(definitions) > 1
	targets := make([]AuditTarget, 0, len(definitions))
	for definitionIndex, definition := range definitions {
		parsedURL, validationError := validateTargetURL(definition)
		if validationError != nil {
			return nil, validationError
		}

		name := strings.TrimSpace(definition.Name)
		if len(name) == 0 {
			name = defaultTargetName(parsedURL)
		}

		if pointsAtPrivateAddress(parsedURL) {
			logger.Warn(privateAddressWarningMessageConstant, zap.String(targetNameLogFieldConstant, name), zap.String(targetURLLogFieldConstant, parsedURL.String()))
		}

		target := AuditTarget{
			Index:             definitionIndex,
			Name:              name,
			URL:               parsedURL.String(),
			OutputDirectory:   outputDirectory,
			BaselineDirectory: input.BaselineDirectory,
		}
		if multipleTargets {
			targetDirectory := TargetDirectoryName(definitionIndex, name)
			target.OutputDirectory = filepath.Join(outputDirectory, pagesDirectoryNameConstant, targetDirectory)
			target.BaselineDirectory = filepath.Join(input.BaselineDirectory, pagesDirectoryNameConstant, targetDirectory)
		}
		targets = append(targets, target)
	}

	return targets, nil
}

// TargetDirectoryName returns the zero-padded, 1-based directory name of a target.
func TargetDirectoryName(index int, name string) string {
	return fmt.Sprintf(targetDirectoryTemplateConstant, index+1, Slugify(name))
}

// Slugify lowercases a name, collapses non-alphanumeric runs into single hyphens,
// and trims leading and trailing hyphens. Empty results fall back to "page".
func Slugify(name string) string {
	lowered := strings.ToLower(name)
	collapsed := slugDisallowedCharactersPattern.ReplaceAllString(lowered, slugSeparatorConstant)
	trimmed := strings.Trim(collapsed, slugSeparatorConstant)
	if len(trimmed) == 0 {
		return slugFallbackConstant
	}
	return trimmed
}

func collectTargetDefinitions(input TargetResolutionInput) []TargetDefinition {
	if len(input.Targets) > 0 {
		definitions := make([]TargetDefinition, len(input.Targets))
		copy(definitions, input.Targets)
		return definitions
	}

	trimmedURL := strings.TrimSpace(input.URL)
	if len(trimmedURL) == 0 {
		return nil
	}
	return []TargetDefinition{{URL: trimmedURL}}
}

func validateTargetURL(definition TargetDefinition) (*url.URL, error) {
	rawURL := strings.TrimSpace(definition.URL)
	if len(rawURL) == 0 {
		return nil, UsageError{Reason: fmt.Sprintf(blankTargetURLReasonTemplateConstant, definition.Name)}
	}
	parsedURL, parseError := url.Parse(rawURL)
	if parseError != nil {
		return nil, UsageError{Reason: fmt.Sprintf(invalidTargetURLReasonTemplateConstant, definition.Name, rawURL, parseError)}
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != schemeHTTPConstant && scheme != schemeHTTPSConstant {
		return nil, UsageError{Reason: fmt.Sprintf(unsupportedSchemeReasonTemplateConstant, definition.Name, parsedURL.Scheme)}
	}
	if len(parsedURL.Hostname()) == 0 {
		return nil, UsageError{Reason: fmt.Sprintf(missingHostReasonTemplateConstant, definition.Name, rawURL)}
	}

	parsedURL.Scheme = scheme
	return parsedURL, nil
}

func defaultTargetName(parsedURL *url.URL) string {
	trimmedPath := strings.Trim(parsedURL.Path, "/")
	if len(trimmedPath) == 0 {
		return parsedURL.Host
	}
	return parsedURL.Host + "/" + trimmedPath
}

func pointsAtPrivateAddress(parsedURL *url.URL) bool {
	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == localhostHostnameConstant || strings.HasSuffix(hostname, localhostSuffixConstant) {
		return true
	}

	address := net.ParseIP(hostname)
	if address == nil {
		return false
	}
	return address.IsLoopback() || address.IsPrivate() || address.IsLinkLocalUnicast() || address.IsLinkLocalMulticast() || address.IsUnspecified()
}

func ensureWithinPermittedRoot(outputDirectory string, permittedRoot string) error {
	trimmedRoot := strings.TrimSpace(permittedRoot)
	if len(trimmedRoot) == 0 {
		return nil
	}

	absoluteRoot, rootError := filepath.Abs(trimmedRoot)
	if rootError != nil {
		return UsageError{Reason: fmt.Sprintf(unresolvableDirectoryReasonTemplate, trimmedRoot, rootError)}
	}
	absoluteOutput, outputError := filepath.Abs(outputDirectory)
	if outputError != nil {
		return UsageError{Reason: fmt.Sprintf(unresolvableDirectoryReasonTemplate, outputDirectory, outputError)}
	}

	relativePath, relativeError := filepath.Rel(absoluteRoot, absoluteOutput)
	if relativeError != nil || relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return UsageError{Reason: fmt.Sprintf(outsidePermittedRootReasonTemplate, outputDirectory, trimmedRoot)}
	}
	return nil
}
