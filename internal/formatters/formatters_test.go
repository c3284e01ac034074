package formatters

import (
	"encoding/json"
	"testing"

	"resumewizard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArtifact() types.ResumeArtifact {
	return types.ResumeArtifact{
		ResumeURL:        "https://storage.example.com/r.pdf",
		PreviewURL:       "https://storage.example.com/r.pdf?_t=1",
		FileType:         "pdf",
		DownloadFilename: "resume.pdf",
	}
}

func TestFormatRegistry(t *testing.T) {
	registry := NewFormatterRegistry()

	tests := []struct {
		name     string
		data     any
		format   string
		contains []string
	}{
		{
			name:     "roles as text",
			data:     types.JobRolesOutput{JobRoles: []string{"Backend Developer", "Data Engineer"}},
			format:   "text",
			contains: []string{"=== JOB ROLES ===", "Backend Developer\nData Engineer\n"},
		},
		{
			name:     "fallback roles as markdown",
			data:     types.JobRolesOutput{JobRoles: []string{"SRE"}, Fallback: true},
			format:   "markdown",
			contains: []string{"# Job Roles", "built-in list", "- SRE\n"},
		},
		{
			name: "generate as text",
			data: types.GenerateOutput{
				ResumeArtifact: sampleArtifact(),
				SourceFile:     "cv.pdf",
				JobRoles:       []string{"SRE", "DevOps"},
			},
			format:   "text",
			contains: []string{"Source:     cv.pdf", "Roles:      SRE, DevOps", "Save as:    resume.pdf"},
		},
		{
			name: "edit as markdown",
			data: types.EditOutput{
				ResumeArtifact: sampleArtifact(),
				PreviousURL:    "https://storage.example.com/old.pdf",
				Instruction:    "Shorten the summary",
			},
			format:   "markdown",
			contains: []string{"> Shorten the summary", "[resume.pdf](https://storage.example.com/r.pdf)", "old.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := registry.Format(tt.data, tt.format)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestJSONFormatterFlattensArtifact(t *testing.T) {
	out, err := NewFormatterRegistry().Format(types.GenerateOutput{ResumeArtifact: sampleArtifact(), SourceFile: "cv.pdf"}, "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "https://storage.example.com/r.pdf", decoded["resumeUrl"])
	assert.Equal(t, "cv.pdf", decoded["sourceFile"])
}

func TestFormatUnknownFormat(t *testing.T) {
	_, err := NewFormatterRegistry().Format(types.JobRolesOutput{}, "yaml")
	assert.Error(t, err)
	assert.Equal(t, []string{"json", "markdown", "text"}, NewFormatterRegistry().GetSupportedFormats())
}
