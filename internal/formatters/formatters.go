package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"resumewizard/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "JobRolesOutput", &JobRolesTextFormatter{})
	registry.RegisterFormatter("markdown", "JobRolesOutput", &JobRolesMarkdownFormatter{})
	registry.RegisterFormatter("text", "GenerateOutput", &GenerateTextFormatter{})
	registry.RegisterFormatter("markdown", "GenerateOutput", &GenerateMarkdownFormatter{})
	registry.RegisterFormatter("text", "EditOutput", &EditTextFormatter{})
	registry.RegisterFormatter("markdown", "EditOutput", &EditMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.JobRolesOutput:
		return "JobRolesOutput"
	case types.GenerateOutput:
		return "GenerateOutput"
	case types.EditOutput:
		return "EditOutput"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// JobRolesTextFormatter prints one role per line
type JobRolesTextFormatter struct{}

func (f *JobRolesTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.JobRolesOutput)
	if !ok {
		return "", fmt.Errorf("expected JobRolesOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== JOB ROLES ===\n")
	if result.Fallback {
		output.WriteString("(backend unavailable, showing the built-in list)\n")
	}
	output.WriteString("\n")
	for _, role := range result.JobRoles {
		output.WriteString(role)
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (f *JobRolesTextFormatter) SupportedType() string {
	return "JobRolesOutput"
}

// JobRolesMarkdownFormatter renders roles as a bullet list
type JobRolesMarkdownFormatter struct{}

func (f *JobRolesMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.JobRolesOutput)
	if !ok {
		return "", fmt.Errorf("expected JobRolesOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Job Roles\n\n")
	if result.Fallback {
		output.WriteString("> Backend unavailable, showing the built-in list.\n\n")
	}
	for _, role := range result.JobRoles {
		output.WriteString(fmt.Sprintf("- %s\n", role))
	}
	return output.String(), nil
}

func (f *JobRolesMarkdownFormatter) SupportedType() string {
	return "JobRolesOutput"
}

func writeArtifactText(output *strings.Builder, artifact types.ResumeArtifact) {
	output.WriteString(fmt.Sprintf("Resume URL: %s\n", artifact.ResumeURL))
	output.WriteString(fmt.Sprintf("Preview:    %s\n", artifact.PreviewURL))
	output.WriteString(fmt.Sprintf("File type:  %s\n", artifact.FileType))
	output.WriteString(fmt.Sprintf("Save as:    %s\n", artifact.DownloadFilename))
}

func writeArtifactMarkdown(output *strings.Builder, artifact types.ResumeArtifact) {
	output.WriteString(fmt.Sprintf("- **Resume:** [%s](%s)\n", artifact.DownloadFilename, artifact.ResumeURL))
	output.WriteString(fmt.Sprintf("- **Preview:** %s\n", artifact.PreviewURL))
	output.WriteString(fmt.Sprintf("- **File type:** %s\n", artifact.FileType))
}

// GenerateTextFormatter handles text formatting for generation results
type GenerateTextFormatter struct{}

func (f *GenerateTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.GenerateOutput)
	if !ok {
		return "", fmt.Errorf("expected GenerateOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== GENERATED RESUME ===\n\n")
	output.WriteString(fmt.Sprintf("Source:     %s\n", result.SourceFile))
	output.WriteString(fmt.Sprintf("Roles:      %s\n", strings.Join(result.JobRoles, ", ")))
	writeArtifactText(&output, result.ResumeArtifact)
	return output.String(), nil
}

func (f *GenerateTextFormatter) SupportedType() string {
	return "GenerateOutput"
}

// GenerateMarkdownFormatter handles markdown formatting for generation results
type GenerateMarkdownFormatter struct{}

func (f *GenerateMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.GenerateOutput)
	if !ok {
		return "", fmt.Errorf("expected GenerateOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Generated Resume\n\n")
	output.WriteString(fmt.Sprintf("- **Source:** %s\n", result.SourceFile))
	output.WriteString(fmt.Sprintf("- **Roles:** %s\n", strings.Join(result.JobRoles, ", ")))
	writeArtifactMarkdown(&output, result.ResumeArtifact)
	return output.String(), nil
}

func (f *GenerateMarkdownFormatter) SupportedType() string {
	return "GenerateOutput"
}

// EditTextFormatter handles text formatting for edit results
type EditTextFormatter struct{}

func (f *EditTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.EditOutput)
	if !ok {
		return "", fmt.Errorf("expected EditOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== EDITED RESUME ===\n\n")
	output.WriteString(fmt.Sprintf("Instruction: %s\n", result.Instruction))
	output.WriteString(fmt.Sprintf("Previous:   %s\n", result.PreviousURL))
	writeArtifactText(&output, result.ResumeArtifact)
	return output.String(), nil
}

func (f *EditTextFormatter) SupportedType() string {
	return "EditOutput"
}

// EditMarkdownFormatter handles markdown formatting for edit results
type EditMarkdownFormatter struct{}

func (f *EditMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.EditOutput)
	if !ok {
		return "", fmt.Errorf("expected EditOutput, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Edited Resume\n\n")
	output.WriteString(fmt.Sprintf("> %s\n\n", result.Instruction))
	writeArtifactMarkdown(&output, result.ResumeArtifact)
	output.WriteString(fmt.Sprintf("- **Previous:** %s\n", result.PreviousURL))
	return output.String(), nil
}

func (f *EditMarkdownFormatter) SupportedType() string {
	return "EditOutput"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
