package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/auth"
	"resumewizard/internal/editsession"
	"resumewizard/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func (e *testEnv) upload(t *testing.T, id, filename, contentType string, data []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	body, formType, err := apiclient.EncodeForm(apiclient.FileField("file", filename, contentType, data))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/wizard/sessions/"+id+"/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", formType)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// readySession walks a new session through the three input steps
func (e *testEnv) readySession(t *testing.T, header http.Header) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/wizard/sessions", nil, header)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[wizard.Snapshot](t, rec).ID
	path := "/api/wizard/sessions/" + id

	rec = e.do(t, http.MethodPut, path+"/job-description", map[string]string{"job_description": "Senior Go engineer"}, header)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, path+"/next", nil, header)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPut, path+"/job-roles", map[string]any{"roles": []string{"Backend Developer"}}, header)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, path+"/next", nil, header)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.upload(t, id, "cv.pdf", wizard.MimePDF, samplePDF, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func TestWizardFullFlow(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	id := env.readySession(t, nil)
	path := "/api/wizard/sessions/" + id

	rec := env.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[wizard.Snapshot](t, rec)
	assert.Equal(t, wizard.StepUpload, snap.Step)
	require.NotNil(t, snap.File)
	assert.Equal(t, "cv.pdf", snap.File.Filename)
	assert.True(t, snap.CanProceed)

	rec = env.do(t, http.MethodPost, path+"/generate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decode[GenerateResponse](t, rec)
	assert.Equal(t, "https://storage.example.com/resumes/abc.pdf", gen.ResumeURL)
	assert.Equal(t, wizard.StepPreview, gen.Session.Step)
	assert.Equal(t, 100, gen.Session.Progress)
	assert.Equal(t, []string{"Backend Developer"}, env.backend.lastRoles)
	assert.Equal(t, wizard.MimePDF, env.backend.lastFile.ContentType)
	assert.Equal(t, []int{http.StatusOK}, env.recorder.generations)

	rec = env.do(t, http.MethodPost, path+"/edit-mode", map[string]bool{"enabled": true}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "Make it shorter"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edit := decode[EditResponse](t, rec)
	require.NotNil(t, edit.Reply)
	assert.Equal(t, editsession.SuccessText, edit.Reply.Text)
	assert.Equal(t, "https://storage.example.com/resumes/abc-edited.pdf", edit.CurrentURL)
	assert.Equal(t, []string{editCommitted}, env.recorder.editTurns)

	rec = env.do(t, http.MethodGet, path+"/edit/messages", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/download", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dl := decode[wizard.Download](t, rec)
	assert.Equal(t, "https://storage.example.com/resumes/abc-edited.pdf", dl.URL)
	assert.Equal(t, "resume.pdf", dl.Filename)

	// Downloading starts the wizard over
	rec = env.do(t, http.MethodGet, path, nil, nil)
	snap = decode[wizard.Snapshot](t, rec)
	assert.Equal(t, wizard.StepJobDescription, snap.Step)
	assert.Nil(t, snap.File)
}

func TestWizardNextRequiresInput(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions", nil, nil)
	id := decode[wizard.Snapshot](t, rec).ID

	rec = env.do(t, http.MethodPost, "/api/wizard/sessions/"+id+"/next", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/wizard/sessions/"+id+"/back", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWizardGenerateMissingInformation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	id := env.readySession(t, nil)
	path := "/api/wizard/sessions/" + id

	rec := env.do(t, http.MethodDelete, path+"/upload", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/generate", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	info := decode[wizard.ErrorInfo](t, rec)
	assert.Equal(t, wizard.MissingInformation.Title, info.Title)
	assert.Zero(t, env.backend.parseCalls)
}

func TestWizardGenerateOnlyFromUpload(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions", nil, nil)
	id := decode[wizard.Snapshot](t, rec).ID
	rec = env.do(t, http.MethodPost, "/api/wizard/sessions/"+id+"/generate", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	id = env.readySession(t, nil)
	path := "/api/wizard/sessions/" + id

	// Only generation leaves the upload step
	rec = env.do(t, http.MethodPost, path+"/next", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, wizard.StepUpload, decode[wizard.Snapshot](t, rec).Step)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/generate", nil, nil).Code)
	rec = env.do(t, http.MethodPost, path+"/generate", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, env.backend.parseCalls)
	assert.Equal(t, []int{http.StatusOK}, env.recorder.generations)
}

func TestWizardGenerateFailureUsesFriendlyCopy(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.backend.parseErr = &apiclient.APIError{StatusCode: http.StatusPaymentRequired, Message: "upgrade"}
	id := env.readySession(t, nil)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions/"+id+"/generate", nil, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	info := decode[wizard.ErrorInfo](t, rec)
	assert.Equal(t, "Payment Required", info.Title)
	assert.Equal(t, []int{http.StatusPaymentRequired}, env.recorder.generations)

	rec = env.do(t, http.MethodGet, "/api/wizard/sessions/"+id, nil, nil)
	snap := decode[wizard.Snapshot](t, rec)
	assert.Equal(t, wizard.StepUpload, snap.Step)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "Payment Required", snap.LastError.Title)
}

func TestWizardRejectsUnsupportedUpload(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions", nil, nil)
	id := decode[wizard.Snapshot](t, rec).ID

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	rec = env.upload(t, id, "photo.png", "image/png", png, nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	info := decode[wizard.ErrorInfo](t, rec)
	assert.Equal(t, wizard.InvalidFileType.Title, info.Title)

	// PDF extension but PNG content
	rec = env.upload(t, id, "cv.pdf", wizard.MimePDF, png, nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/wizard/sessions/"+id, nil, nil)
	assert.Nil(t, decode[wizard.Snapshot](t, rec).File)
}

func TestWizardRejectsOversizedUpload(t *testing.T) {
	cfg := testConfig()
	cfg.Wizard.MaxUploadSize = 32
	env := newTestEnv(t, cfg, nil)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions", nil, nil)
	id := decode[wizard.Snapshot](t, rec).ID

	rec = env.upload(t, id, "cv.pdf", wizard.MimePDF, samplePDF, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, wizard.FileTooLarge.Title, decode[wizard.ErrorInfo](t, rec).Title)
}

func TestWizardEditTurnLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Wizard.EditTurnLimit = 1
	env := newTestEnv(t, cfg, nil)
	id := env.readySession(t, nil)
	path := "/api/wizard/sessions/" + id

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/generate", nil, nil).Code)

	// Edits need the chat to be open
	rec := env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "x"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/edit-mode", map[string]bool{"enabled": true}, nil).Code)

	rec = env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "Add a summary"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "One more"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, editsession.LimitReachedMessage, decode[ErrorResponse](t, rec).Message)
	assert.Equal(t, 1, env.backend.editCalls)
	assert.Equal(t, []string{editRejected, editRejected, editCommitted, editRejected}, env.recorder.editTurns)
}

func TestWizardFailedEditDoesNotCount(t *testing.T) {
	cfg := testConfig()
	cfg.Wizard.EditTurnLimit = 1
	env := newTestEnv(t, cfg, nil)
	id := env.readySession(t, nil)
	path := "/api/wizard/sessions/" + id

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/generate", nil, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/edit-mode", map[string]bool{"enabled": true}, nil).Code)

	env.backend.editErr = &apiclient.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	rec := env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "Add a summary"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	env.backend.editErr = nil
	rec = env.do(t, http.MethodPost, path+"/edit/messages", map[string]string{"instruction": "Add a summary"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{editFailed, editCommitted}, env.recorder.editTurns)
}

func TestWizardSessionOwnership(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	env := newTestEnv(t, cfg, nil)

	alice, _, err := env.tokens.Issue(&auth.UserProfile{ID: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	bob, _, err := env.tokens.Issue(&auth.UserProfile{ID: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions", nil, bearer(alice))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[wizard.Snapshot](t, rec).ID

	rec = env.do(t, http.MethodGet, "/api/wizard/sessions/"+id, nil, bearer(bob))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/wizard/sessions/"+id, nil, bearer(bob))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/wizard/sessions/"+id, nil, bearer(alice))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/wizard/sessions/"+id, nil, bearer(alice))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizardRoleToggleAndReset(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec := env.do(t, http.MethodPost, "/api/wizard/sessions", nil, nil)
	id := decode[wizard.Snapshot](t, rec).ID
	path := "/api/wizard/sessions/" + id

	rec = env.do(t, http.MethodPut, path+"/job-roles", map[string]string{"toggle": "Data Engineer"}, nil)
	assert.Equal(t, []string{"Data Engineer"}, decode[wizard.Snapshot](t, rec).SelectedRoles)

	rec = env.do(t, http.MethodPut, path+"/job-roles", map[string]string{"toggle": "Data Engineer"}, nil)
	assert.Empty(t, decode[wizard.Snapshot](t, rec).SelectedRoles)

	env.do(t, http.MethodPut, path+"/job-description", map[string]string{"job_description": "SRE"}, nil)
	rec = env.do(t, http.MethodPost, path+"/reset", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[wizard.Snapshot](t, rec).JobDescription)
}

func TestJobRolesEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec := env.do(t, http.MethodGet, "/api/job-roles", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, no-store", rec.Header().Get("Cache-Control"))
	resp := decode[JobRolesResponse](t, rec)
	assert.Equal(t, []string{"Backend Developer", "Data Engineer"}, resp.JobRoles)
	assert.False(t, resp.Fallback)

	rec = env.do(t, http.MethodPost, "/api/job-roles/reset", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	env.backend.rolesErr = &apiclient.APIError{StatusCode: http.StatusBadGateway, Message: "down"}
	rec = env.do(t, http.MethodGet, "/api/job-roles", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[JobRolesResponse](t, rec)
	assert.True(t, resp.Fallback)
	assert.NotEmpty(t, resp.JobRoles)
}
