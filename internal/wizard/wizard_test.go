package wizard

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/editsession"
	"resumewizard/internal/resume"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfData = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

type fakeBackend struct {
	calls   atomic.Int32
	url     string
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeBackend) ParseResume(ctx context.Context, file resume.Upload, jobDescription string, jobRoles []string, token string) (*resume.Result, error) {
	f.calls.Add(1)
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &resume.Result{ResumeURL: f.url}, nil
}

func (f *fakeBackend) EditResume(ctx context.Context, resumeURL, instruction, token string) (*resume.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &resume.Result{ResumeURL: "https://storage.example/edited.docx"}, nil
}

func fastOptions() Options {
	return Options{ProgressInterval: 5 * time.Millisecond}
}

func readySession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("s1", "user-1", fastOptions())
	s.SetJobDescription("Senior Go engineer")
	require.NoError(t, s.Next())
	s.SetRoles([]string{"Backend Developer"})
	require.NoError(t, s.Next())
	require.NoError(t, s.SetUpload(resume.Upload{Filename: "cv.pdf", ContentType: "application/pdf", Data: pdfData}))
	require.Equal(t, StepUpload, s.Step())
	return s
}

func TestNextRequiresCompleteStep(t *testing.T) {
	s := NewSession("s1", "", fastOptions())
	assert.Equal(t, StepJobDescription, s.Step())

	s.SetJobDescription("   ")
	assert.ErrorIs(t, s.Next(), ErrStepIncomplete)
	assert.Equal(t, StepJobDescription, s.Step())

	s.SetJobDescription("Platform engineer")
	require.NoError(t, s.Next())
	assert.Equal(t, StepJobRoles, s.Step())

	assert.ErrorIs(t, s.Next(), ErrStepIncomplete)
	s.ToggleRole("SRE")
	require.NoError(t, s.Next())
	assert.Equal(t, StepUpload, s.Step())

	assert.ErrorIs(t, s.Next(), ErrNoManualAdvance)
	assert.False(t, s.CanProceed())
	assert.Equal(t, StepUpload, s.Step())
}

func TestNextAtCompletedUploadStaysOnUpload(t *testing.T) {
	s := readySession(t)
	require.True(t, s.CanProceed())

	assert.ErrorIs(t, s.Next(), ErrNoManualAdvance)
	assert.Equal(t, StepUpload, s.Step())
	assert.False(t, s.Busy())

	require.NoError(t, s.Back())
	assert.Equal(t, StepJobRoles, s.Step())
}

// sessionAt returns a session with every input filled in, parked at step
func sessionAt(t *testing.T, step Step) *Session {
	t.Helper()
	s := NewSession("s1", "", fastOptions())
	s.SetJobDescription("Senior Go engineer")
	s.SetRoles([]string{"Backend Developer"})
	require.NoError(t, s.SetUpload(resume.Upload{Filename: "cv.pdf", ContentType: "application/pdf", Data: pdfData}))

	for s.Step() < min(step, StepUpload) {
		require.NoError(t, s.Next())
	}

	switch step {
	case StepProcessing:
		backend := &fakeBackend{url: "https://x/first.pdf", release: make(chan struct{}), started: make(chan struct{})}
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = s.Generate(context.Background(), backend, "")
		}()
		<-backend.started
		t.Cleanup(func() {
			close(backend.release)
			<-done
		})
	case StepPreview:
		_, err := s.Generate(context.Background(), &fakeBackend{url: "https://x/first.pdf"}, "")
		require.NoError(t, err)
	}
	require.Equal(t, step, s.Step())
	return s
}

func TestStepTransitions(t *testing.T) {
	next := func(s *Session) error { return s.Next() }
	back := func(s *Session) error { return s.Back() }
	generate := func(s *Session) error {
		_, err := s.Generate(context.Background(), &fakeBackend{url: "https://x/second.pdf"}, "")
		return err
	}

	tests := []struct {
		name     string
		from     Step
		action   func(*Session) error
		wantErr  error
		wantStep Step
	}{
		{"next from job description", StepJobDescription, next, nil, StepJobRoles},
		{"back from job description", StepJobDescription, back, ErrBackNotAllowed, StepJobDescription},
		{"generate from job description", StepJobDescription, generate, ErrGenerateNotAllowed, StepJobDescription},

		{"next from job roles", StepJobRoles, next, nil, StepUpload},
		{"back from job roles", StepJobRoles, back, nil, StepJobDescription},
		{"generate from job roles", StepJobRoles, generate, ErrGenerateNotAllowed, StepJobRoles},

		{"next from upload", StepUpload, next, ErrNoManualAdvance, StepUpload},
		{"back from upload", StepUpload, back, nil, StepJobRoles},
		{"generate from upload", StepUpload, generate, nil, StepPreview},

		{"next while processing", StepProcessing, next, ErrNoManualAdvance, StepProcessing},
		{"back while processing", StepProcessing, back, ErrBackNotAllowed, StepProcessing},
		{"generate while processing", StepProcessing, generate, ErrBusy, StepProcessing},

		{"next from preview", StepPreview, next, ErrNoManualAdvance, StepPreview},
		{"back from preview", StepPreview, back, ErrBackNotAllowed, StepPreview},
		{"generate from preview", StepPreview, generate, ErrGenerateNotAllowed, StepPreview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionAt(t, tt.from)
			err := tt.action(s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantStep, s.Step())
		})
	}
}

func TestPreviewKeepsArtifactWhenGenerateRefused(t *testing.T) {
	s := sessionAt(t, StepPreview)
	backend := &fakeBackend{err: &apiclient.APIError{StatusCode: http.StatusInternalServerError}}

	_, err := s.Generate(context.Background(), backend, "")
	assert.ErrorIs(t, err, ErrGenerateNotAllowed)
	assert.Zero(t, backend.calls.Load())
	assert.Equal(t, StepPreview, s.Step())
	assert.Equal(t, "https://x/first.pdf", s.CurrentResumeURL())
	assert.Nil(t, s.LastError())
}

func TestBackOnlyFromInputSteps(t *testing.T) {
	s := NewSession("s1", "", fastOptions())
	assert.ErrorIs(t, s.Back(), ErrBackNotAllowed)

	s = readySession(t)
	require.NoError(t, s.Back())
	assert.Equal(t, StepJobRoles, s.Step())
	require.NoError(t, s.Back())
	assert.Equal(t, StepJobDescription, s.Step())
}

func TestRoleSelectionOrder(t *testing.T) {
	s := NewSession("s1", "", fastOptions())
	s.ToggleRole("B")
	s.ToggleRole("A")
	s.ToggleRole("C")
	s.ToggleRole("A")
	s.ToggleRole(" ")
	assert.Equal(t, []string{"B", "C"}, s.SelectedRoles())

	s.SetRoles([]string{"X", "Y", "X", "", "Z"})
	assert.Equal(t, []string{"X", "Y", "Z"}, s.SelectedRoles())
}

func TestGenerateSuccess(t *testing.T) {
	s := readySession(t)
	backend := &fakeBackend{
		url:     "https://storage.example/out.pdf",
		release: make(chan struct{}),
		started: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), backend, "tok")
		done <- err
	}()

	<-backend.started
	assert.Equal(t, StepProcessing, s.Step())
	assert.True(t, s.Busy())
	assert.Eventually(t, func() bool { return s.Progress() >= 10 }, time.Second, 5*time.Millisecond)

	_, err := s.Generate(context.Background(), backend, "tok")
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.release)
	require.NoError(t, <-done)

	assert.Equal(t, StepPreview, s.Step())
	assert.Equal(t, 100, s.Progress())
	assert.Equal(t, "https://storage.example/out.pdf", s.CurrentResumeURL())
	assert.Nil(t, s.LastError())
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestProgressIsCapped(t *testing.T) {
	s := readySession(t)
	backend := &fakeBackend{url: "https://x/out.pdf", release: make(chan struct{}), started: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Generate(context.Background(), backend, "")
	}()
	<-backend.started
	assert.Eventually(t, func() bool { return s.Progress() == 95 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 95, s.Progress())
	close(backend.release)
	<-done
}

func TestGenerateFailureReturnsToUpload(t *testing.T) {
	s := readySession(t)
	code := 3
	backend := &fakeBackend{err: &apiclient.APIError{StatusCode: 500, Message: "queue full", ErrorCode: &code}}

	_, err := s.Generate(context.Background(), backend, "")
	require.Error(t, err)

	assert.Equal(t, StepUpload, s.Step())
	assert.Equal(t, 0, s.Progress())
	assert.False(t, s.Busy())
	require.NotNil(t, s.LastError())
	assert.Equal(t, "Hold On!", s.LastError().Title)
	assert.Equal(t, 500, s.LastError().StatusCode)
	assert.Empty(t, s.CurrentResumeURL())
}

func TestGenerateMissingInformation(t *testing.T) {
	s := readySession(t)
	s.ClearUpload()
	backend := &fakeBackend{}

	_, err := s.Generate(context.Background(), backend, "")
	assert.ErrorIs(t, err, ErrMissingInformation)
	assert.Equal(t, MissingInformation, *s.LastError())
	assert.Equal(t, StepUpload, s.Step())

	// The description can be cleared after leaving its step
	s = readySession(t)
	s.SetJobDescription("  ")
	_, err = s.Generate(context.Background(), backend, "")
	assert.ErrorIs(t, err, ErrMissingInformation)

	assert.Zero(t, backend.calls.Load())
}

func TestResetDuringGenerate(t *testing.T) {
	s := readySession(t)
	backend := &fakeBackend{url: "https://x/out.pdf", release: make(chan struct{}), started: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Generate(context.Background(), backend, "")
	}()
	<-backend.started
	s.Reset()
	close(backend.release)
	<-done

	assert.Equal(t, StepJobDescription, s.Step())
	assert.Empty(t, s.CurrentResumeURL())
	assert.False(t, s.Busy())
}

type blockingEditor struct {
	started chan struct{}
	release chan struct{}
	url     string
}

func (b *blockingEditor) EditResume(ctx context.Context, resumeURL, instruction, token string) (*resume.Result, error) {
	close(b.started)
	<-b.release
	return &resume.Result{ResumeURL: b.url}, nil
}

func TestResetDuringEdit(t *testing.T) {
	s := sessionAt(t, StepPreview)
	require.NoError(t, s.EnterEditMode())
	editor := &blockingEditor{started: make(chan struct{}), release: make(chan struct{}), url: "https://x/stale-edit.pdf"}

	done := make(chan error, 1)
	go func() {
		_, err := s.SendEdit(context.Background(), editor, "shorten it", "")
		done <- err
	}()
	<-editor.started
	assert.True(t, s.Busy())

	_, err := s.Generate(context.Background(), &fakeBackend{url: "https://x/other.pdf"}, "")
	assert.ErrorIs(t, err, ErrBusy)

	s.Reset()
	close(editor.release)
	assert.ErrorIs(t, <-done, ErrSessionReset)

	assert.Equal(t, StepJobDescription, s.Step())
	assert.Empty(t, s.CurrentResumeURL())
	assert.False(t, s.EditMode())
	assert.Empty(t, s.Edit().Messages())
	assert.Empty(t, s.Edit().BaseURL())
}

func TestUploadValidation(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSession("s1", "", Options{MaxUploadSize: 64})

	err := s.SetUpload(resume.Upload{Filename: "me.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n0000")})
	assert.ErrorIs(t, err, ErrInvalidFileType)
	assert.Equal(t, "Invalid File Type", s.LastError().Title)

	err = s.SetUpload(resume.Upload{Filename: "fake.pdf", ContentType: "application/pdf", Data: []byte("just some text")})
	assert.ErrorIs(t, err, ErrInvalidFileType, "declared type must match content")

	big := append([]byte("%PDF-1.4\n"), make([]byte, 100)...)
	err = s.SetUpload(resume.Upload{Filename: "big.pdf", ContentType: "application/pdf", Data: big})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "File Too Large", Classify(err).Title)

	docx := resume.Upload{Filename: "cv.docx", ContentType: MimeDOCX, Data: []byte("PK\x03\x04\x14\x00\x06\x00\x08\x00\x00\x00!\x00")}
	require.NoError(t, s.SetUpload(docx))

	undeclared := resume.Upload{Filename: "cv.pdf", Data: pdfData[:40]}
	require.NoError(t, s.SetUpload(undeclared))
	assert.Equal(t, "application/pdf", s.Snapshot().File.ContentType)

	assert.Zero(t, backend.calls.Load())
}

func TestEditModeFlow(t *testing.T) {
	s := readySession(t)
	assert.ErrorIs(t, s.EnterEditMode(), ErrNotReady)

	backend := &fakeBackend{url: "https://storage.example/out.pdf"}
	_, err := s.Generate(context.Background(), backend, "")
	require.NoError(t, err)

	_, err = s.SendEdit(context.Background(), backend, "add skills", "")
	assert.ErrorIs(t, err, ErrEditModeInactive)

	require.NoError(t, s.EnterEditMode())
	assert.True(t, s.EditMode())
	assert.Equal(t, StepPreview, s.Step())

	reply, err := s.SendEdit(context.Background(), backend, "add skills", "")
	require.NoError(t, err)
	assert.Equal(t, editsession.SuccessText, reply.Text)
	assert.Equal(t, "https://storage.example/edited.docx", s.CurrentResumeURL())

	snap := s.Snapshot()
	require.NotNil(t, snap.Edit)
	assert.Equal(t, 1, snap.Edit.TurnCount)

	s.ExitEditMode()
	assert.False(t, s.EditMode())
	assert.Equal(t, StepPreview, s.Step())
	assert.Equal(t, "https://storage.example/edited.docx", s.CurrentResumeURL())

	require.NoError(t, s.EnterEditMode())
	assert.Equal(t, 1, s.Edit().TurnCount(), "re-entering keeps the chat")
}

func TestMarkDownloaded(t *testing.T) {
	s := readySession(t)
	_, err := s.MarkDownloaded()
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = s.Generate(context.Background(), &fakeBackend{url: "https://storage.example/out.pdf?sig=abc&_t=99"}, "")
	require.NoError(t, err)

	dl, err := s.MarkDownloaded()
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/out.pdf?sig=abc", dl.URL)
	assert.Equal(t, "resume.pdf", dl.Filename)
	assert.Equal(t, StepJobDescription, s.Step())
	assert.Empty(t, s.SelectedRoles())
}

func TestClassify(t *testing.T) {
	code420 := 420
	tests := []struct {
		name      string
		err       error
		wantTitle string
		wantCode  int
	}{
		{"unauthorized", &apiclient.APIError{StatusCode: 401}, "Unauthorized", 401},
		{"payment", &apiclient.APIError{StatusCode: 402}, "Payment Required", 402},
		{"format", &apiclient.APIError{StatusCode: 420}, "Format Not Supported", 420},
		{"server", &apiclient.APIError{StatusCode: 500}, "Hold On!", 500},
		{"gateway", &apiclient.APIError{StatusCode: http.StatusBadGateway}, "Service Unavailable", 502},
		{"breaker open", &apiclient.APIError{StatusCode: 503}, "Service Unavailable", 503},
		{"unlisted", &apiclient.APIError{StatusCode: 418}, "Internal Server Error!!", 418},
		{"transport", &apiclient.APIError{StatusCode: 0}, "Internal Server Error!!", 500},
		{"code when no status", &apiclient.APIError{ErrorCode: &code420}, "Format Not Supported", 420},
		{"missing info", ErrMissingInformation, "Missing Information", 400},
		{"plain error", context.DeadlineExceeded, "Internal Server Error!!", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Classify(tt.err)
			assert.Equal(t, tt.wantTitle, info.Title)
			assert.Equal(t, tt.wantCode, info.StatusCode)
		})
	}
	assert.Equal(t, ErrorInfo{}, Classify(nil))
}
