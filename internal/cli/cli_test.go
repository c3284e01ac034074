package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resumewizard/internal/config"
	"resumewizard/internal/errors"
	"resumewizard/internal/jobroles"
	"resumewizard/internal/observability"
	"resumewizard/internal/resume"
	"resumewizard/internal/types"
	"resumewizard/internal/wizard"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePDF is enough of a PDF for content sniffing
var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			LogLevel:         "error",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
		},
		Backend: config.BackendConfig{BaseURL: backendURL, Timeout: 5 * time.Second},
		Server:  config.ServerConfig{Port: "8080", MaxRequestSize: 64 << 10},
		Wizard:  config.WizardConfig{MaxUploadSize: 1 << 20},
		Auth:    config.AuthConfig{Provider: "none", JWTSecret: "test-secret", TokenTTL: time.Hour},
	}
}

// resetFlags restores every flag to its default so commands do not see
// values from earlier runs
func resetFlags() {
	reset := func(flag *pflag.Flag) {
		if slice, ok := flag.Value.(pflag.SliceValue); ok {
			_ = slice.Replace(nil)
		} else {
			_ = flag.Value.Set(flag.DefValue)
		}
		flag.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, cmd := range rootCmd.Commands() {
		cmd.Flags().VisitAll(reset)
	}
}

// runCLI executes the root command with fresh flag state
func runCLI(t *testing.T, cfg *config.Config, args ...string) error {
	t.Helper()

	resetFlags()

	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	return Execute(context.Background(), cfg, errors.Discard())
}

func newBackendServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeBackendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readOutput[T any](t *testing.T, path string) T {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRolesCommand(t *testing.T) {
	var gotAuth string
	url := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, resume.PathGetJobRoles, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		writeBackendJSON(w, http.StatusOK, map[string]any{"job_roles": []string{"Data Engineer", "SRE"}})
	})
	out := filepath.Join(t.TempDir(), "roles.json")

	require.NoError(t, runCLI(t, testConfig(url), "roles", "--token", "abc", "-o", out))

	roles := readOutput[types.JobRolesOutput](t, out)
	assert.Equal(t, []string{"Data Engineer", "SRE"}, roles.JobRoles)
	assert.False(t, roles.Fallback)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestRolesCommandFallsBack(t *testing.T) {
	url := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeBackendJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})
	dir := t.TempDir()
	catalog := filepath.Join(dir, "roles.txt")
	require.NoError(t, os.WriteFile(catalog, []byte("# fallback\nPlatform Engineer\n\nQA Engineer\n"), 0o600))
	out := filepath.Join(dir, "roles.json")

	cfg := testConfig(url)
	cfg.JobRoles.FallbackFile = catalog
	require.NoError(t, runCLI(t, cfg, "roles", "-o", out))

	roles := readOutput[types.JobRolesOutput](t, out)
	assert.True(t, roles.Fallback)
	assert.Equal(t, []string{"Platform Engineer", "QA Engineer"}, roles.JobRoles)
}

func TestRolesCommandRejectsUnknownFormat(t *testing.T) {
	err := runCLI(t, testConfig("http://127.0.0.1:1"), "roles", "--format", "yaml")
	assert.ErrorContains(t, err, "unsupported output format 'yaml'")
}

func TestGenerateCommand(t *testing.T) {
	url := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, resume.PathGenerateResume, r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Run our Go services", r.FormValue("job_description"))
		assert.Equal(t, `["Backend Developer","SRE"]`, r.FormValue("related_jobs"))

		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			assert.Equal(t, "cv.pdf", header.Filename)
			assert.Equal(t, wizard.MimePDF, header.Header.Get("Content-Type"))
			data, _ := io.ReadAll(file)
			assert.True(t, bytes.Equal(samplePDF, data))
		}
		writeBackendJSON(w, http.StatusOK, map[string]string{"gcs_url": "https://storage.example.com/out.pdf"})
	})

	dir := t.TempDir()
	resumeFile := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(resumeFile, samplePDF, 0o600))
	descFile := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(descFile, []byte("Run our Go services"), 0o600))
	out := filepath.Join(dir, "generated.json")

	require.NoError(t, runCLI(t, testConfig(url), "generate",
		"--file", resumeFile,
		"--description-file", descFile,
		"--role", "Backend Developer", "--role", " SRE ", "--role", "  ",
		"-o", out))

	generated := readOutput[types.GenerateOutput](t, out)
	assert.Equal(t, "https://storage.example.com/out.pdf", generated.ResumeURL)
	assert.Contains(t, generated.PreviewURL, "_t=")
	assert.Equal(t, "pdf", generated.FileType)
	assert.Equal(t, "resume.pdf", generated.DownloadFilename)
	assert.Equal(t, "cv.pdf", generated.SourceFile)
	assert.Equal(t, []string{"Backend Developer", "SRE"}, generated.JobRoles)
}

func TestGenerateCommandValidation(t *testing.T) {
	calls := 0
	url := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeBackendJSON(w, http.StatusOK, map[string]string{"gcs_url": "https://storage.example.com/out.pdf"})
	})
	dir := t.TempDir()
	pdf := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(pdf, samplePDF, 0o600))
	png := filepath.Join(dir, "photo.pdf")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))

	err := runCLI(t, testConfig(url), "generate", "--file", pdf, "--description", "Go work")
	assert.ErrorIs(t, err, wizard.ErrMissingInformation)

	err = runCLI(t, testConfig(url), "generate", "--file", png, "--description", "Go work", "--role", "SRE")
	assert.ErrorIs(t, err, wizard.ErrInvalidFileType)

	cfg := testConfig(url)
	cfg.Wizard.MaxUploadSize = 16
	err = runCLI(t, cfg, "generate", "--file", pdf, "--description", "Go work", "--role", "SRE")
	assert.ErrorContains(t, err, errors.ErrCodeFileTooLarge)

	assert.Zero(t, calls)
}

func TestGenerateCommandReportsBackendFailure(t *testing.T) {
	url := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeBackendJSON(w, http.StatusPaymentRequired, map[string]string{"detail": "Out of credits"})
	})
	resumeFile := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(resumeFile, samplePDF, 0o600))

	err := runCLI(t, testConfig(url), "generate", "--file", resumeFile, "-d", "Go work", "-r", "SRE")
	require.Error(t, err)
	assert.Equal(t, http.StatusPaymentRequired, wizard.Classify(err).StatusCode)
}

func TestEditCommand(t *testing.T) {
	url := newBackendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, resume.PathEditResume, r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "https://storage.example.com/out.pdf?sig=abc", r.FormValue("resume_url"))
		assert.Equal(t, "Shorten the summary", r.FormValue("user_instruction"))
		writeBackendJSON(w, http.StatusOK, map[string]string{"gcs_url": "https://storage.example.com/out-2.docx"})
	})
	out := filepath.Join(t.TempDir(), "edit.json")

	require.NoError(t, runCLI(t, testConfig(url), "edit",
		"--url", "https://storage.example.com/out.pdf?sig=abc&_t=1700000000",
		"--instruction", "  Shorten the summary ",
		"-o", out))

	edited := readOutput[types.EditOutput](t, out)
	assert.Equal(t, "https://storage.example.com/out-2.docx", edited.ResumeURL)
	assert.Equal(t, "docx", edited.FileType)
	assert.Equal(t, "resume.docx", edited.DownloadFilename)
	assert.Equal(t, "https://storage.example.com/out.pdf?sig=abc", edited.PreviousURL)
	assert.Equal(t, "Shorten the summary", edited.Instruction)
}

func TestEditCommandRejectsBlankInstruction(t *testing.T) {
	err := runCLI(t, testConfig("http://127.0.0.1:1"), "edit", "--url", "https://x/r.pdf", "--instruction", "   ")
	assert.ErrorContains(t, err, "Instruction cannot be empty")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetArgs([]string{"version"})
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	require.NoError(t, Execute(context.Background(), testConfig(""), errors.Discard()))
	assert.Contains(t, buf.String(), "resumewizard version "+Version)
}

func TestApplyServeFlags(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	cfg := testConfig("https://configured.example.com")
	require.NoError(t, serveCmd.Flags().Set("port", "9090"))
	require.NoError(t, serveCmd.Flags().Set("backend-url", "https://flag.example.com"))

	applyServeFlags(serveCmd, cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://flag.example.com", cfg.Backend.BaseURL)
	assert.Empty(t, cfg.Server.Host, "unset flags leave the config alone")
}

func TestBuildDependencies(t *testing.T) {
	cfg := testConfig("https://backend.example.com")
	om, err := observability.NewManager(observability.Settings{ServiceName: "test"}, nil)
	require.NoError(t, err)

	deps, stop, err := buildDependencies(cfg, om.Metrics(), errors.Discard())
	require.NoError(t, err)
	defer stop()

	assert.Nil(t, deps.Auth, "provider none leaves auth unset")
	assert.NotNil(t, deps.Tokens)
	assert.NotNil(t, deps.Sessions)
	assert.Equal(t, "https://backend.example.com", deps.Client.BaseURL())
	assert.Equal(t, len(jobroles.DefaultRoles), deps.Roles.Stats()["fallback_count"])

	cfg.Auth.Provider = "local"
	deps, stop2, err := buildDependencies(cfg, om.Metrics(), errors.Discard())
	require.NoError(t, err)
	defer stop2()
	assert.NotNil(t, deps.Auth)
}
