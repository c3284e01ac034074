package common

import (
	"fmt"
	"slices"

	"resumewizard/internal/formatters"
)

// ValidateOutputFormat accepts a format that a formatter can render and, when
// the configuration restricts formats, that the configuration allows
func ValidateOutputFormat(format string, supportedFormats []string) error {
	available := GetSupportedFormats(supportedFormats)
	if slices.Contains(available, format) {
		return nil
	}
	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v", format, available)
}

// GetSupportedFormats returns the configured formats the registry can render,
// in configured order. An empty configuration means every registered format.
func GetSupportedFormats(supportedFormats []string) []string {
	registered := formatters.GlobalRegistry.GetSupportedFormats()
	if len(supportedFormats) == 0 {
		return registered
	}

	formats := make([]string, 0, len(supportedFormats))
	for _, format := range supportedFormats {
		if slices.Contains(registered, format) {
			formats = append(formats, format)
		}
	}
	return formats
}
