// Package flags provides pflag values and usage helpers shared by pageaudit commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderPrefixConstant   = "<"
	choicePlaceholderSuffixConstant   = ">"
	choiceSeparatorConstant           = "|"
	choiceUsageEmptyTemplateConstant  = "`%s`"
	choiceUsageFullTemplateConstant   = "`%s` %s"
	choiceTypeNameConstant            = "choice"
	unsupportedChoiceTemplateConstant = "unsupported value %q; expected one of %s"
)

// FormatChoiceUsage renders a usage string listing the choices with the default one capitalized.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := choicePlaceholderPrefixConstant + strings.Join(displayChoices(defaultChoice, choices), choiceSeparatorConstant) + choicePlaceholderSuffixConstant
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplateConstant, placeholder, description)
}

func displayChoices(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	displayed := make([]string, 0, len(choices))
	for _, normalizedChoice := range normalizeChoices(choices) {
		if normalizedChoice == normalizedDefault {
			displayed = append(displayed, strings.ToUpper(normalizedChoice))
			continue
		}
		displayed = append(displayed, normalizedChoice)
	}
	return displayed
}

func normalizeChoices(choices []string) []string {
	normalized := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		candidate := strings.ToLower(strings.TrimSpace(choice))
		if len(candidate) == 0 {
			continue
		}
		if _, duplicate := seen[candidate]; duplicate {
			continue
		}
		seen[candidate] = struct{}{}
		normalized = append(normalized, candidate)
	}
	return normalized
}

// ChoiceValue is a pflag.Value restricted to a closed set of lowercase strings.
type ChoiceValue struct {
	value   string
	choices []string
}

var _ pflag.Value = (*ChoiceValue)(nil)

// NewChoiceValue constructs a ChoiceValue holding defaultChoice.
func NewChoiceValue(defaultChoice string, choices []string) *ChoiceValue {
	return &ChoiceValue{value: strings.ToLower(strings.TrimSpace(defaultChoice)), choices: normalizeChoices(choices)}
}

// String returns the current value.
func (choiceValue *ChoiceValue) String() string {
	if choiceValue == nil {
		return ""
	}
	return choiceValue.value
}

// Set accepts a value case-insensitively and rejects anything outside the choice set.
func (choiceValue *ChoiceValue) Set(rawValue string) error {
	candidate := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range choiceValue.choices {
		if choice == candidate {
			choiceValue.value = candidate
			return nil
		}
	}
	return fmt.Errorf(unsupportedChoiceTemplateConstant, rawValue, strings.Join(choiceValue.choices, ", "))
}

// Type names the value in generated usage.
func (choiceValue *ChoiceValue) Type() string {
	return choiceTypeNameConstant
}

// BindChoiceFlag registers a persistent choice flag on flagSet.
func BindChoiceFlag(flagSet *pflag.FlagSet, name string, defaultChoice string, choices []string, description string) *ChoiceValue {
	choiceValue := NewChoiceValue(defaultChoice, choices)
	if flagSet == nil {
		return choiceValue
	}
	flagSet.Var(choiceValue, name, FormatChoiceUsage(defaultChoice, choices, description))
	return choiceValue
}
