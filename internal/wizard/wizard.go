// Package wizard implements the five-step resume generation flow and the
// edit mode that follows it.
package wizard

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"resumewizard/internal/artifact"
	"resumewizard/internal/config"
	"resumewizard/internal/editsession"
	"resumewizard/internal/errors"
	"resumewizard/internal/resume"
)

// Step is a position in the wizard
type Step int

const (
	StepJobDescription Step = iota + 1
	StepJobRoles
	StepUpload
	StepProcessing
	StepPreview
)

func (s Step) String() string {
	switch s {
	case StepJobDescription:
		return "job_description"
	case StepJobRoles:
		return "job_roles"
	case StepUpload:
		return "upload"
	case StepProcessing:
		return "processing"
	case StepPreview:
		return "preview"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

var (
	ErrStepIncomplete     = errors.NewStateError(errors.ErrCodeInvalidTransition, "current step is incomplete", nil)
	ErrBackNotAllowed     = errors.NewStateError(errors.ErrCodeInvalidTransition, "cannot go back from this step", nil)
	ErrMissingInformation = errors.NewValidationError(errors.ErrCodeMissingInformation, MissingInformation.Message, nil)
	ErrBusy               = errors.NewStateError(errors.ErrCodeInvalidTransition, "resume generation already in progress", nil)
	ErrNotReady           = errors.NewStateError(errors.ErrCodeInvalidTransition, "no generated resume yet", nil)
	ErrEditModeInactive   = errors.NewStateError(errors.ErrCodeInvalidTransition, "edit mode is not active", nil)
	ErrNoManualAdvance    = errors.NewStateError(errors.ErrCodeInvalidTransition, "this step is left by generating the resume", nil)
	ErrGenerateNotAllowed = errors.NewStateError(errors.ErrCodeInvalidTransition, "resume can only be generated from the upload step", nil)
	ErrSessionReset       = errors.NewStateError(errors.ErrCodeInvalidTransition, "session was reset while the request was running", nil)
)

// Generator produces a resume from the wizard inputs
type Generator interface {
	ParseResume(ctx context.Context, file resume.Upload, jobDescription string, jobRoles []string, token string) (*resume.Result, error)
}

// Options tunes limits and the simulated progress bar
type Options struct {
	MaxUploadSize    int64
	EditTurnLimit    int
	ProgressStep     int
	ProgressInterval time.Duration
	ProgressCap      int
}

// OptionsFromConfig maps wizard configuration onto Options
func OptionsFromConfig(cfg config.WizardConfig) Options {
	return Options{
		MaxUploadSize:    cfg.MaxUploadSize,
		EditTurnLimit:    cfg.EditTurnLimit,
		ProgressStep:     cfg.ProgressStep,
		ProgressInterval: cfg.ProgressInterval,
		ProgressCap:      cfg.ProgressCap,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxUploadSize <= 0 {
		o.MaxUploadSize = DefaultMaxUploadSize
	}
	if o.EditTurnLimit <= 0 {
		o.EditTurnLimit = editsession.DefaultLimit
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = 5
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 150 * time.Millisecond
	}
	if o.ProgressCap <= 0 || o.ProgressCap > 100 {
		o.ProgressCap = 95
	}
	return o
}

// Session is one user's pass through the wizard. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	id    string
	owner string
	opts  Options

	step           Step
	jobDescription string
	roles          []string
	file           *resume.Upload

	generatedURL string
	editedURL    string
	editMode     bool
	busy         bool
	progress     int
	lastError    *ErrorInfo
	epoch        int

	edit *editsession.Session

	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// NewSession creates a session at the first step
func NewSession(id, owner string, opts Options) *Session {
	opts = opts.withDefaults()
	now := time.Now()
	return &Session{
		id:        id,
		owner:     owner,
		opts:      opts,
		step:      StepJobDescription,
		edit:      editsession.New(opts.EditTurnLimit),
		createdAt: now,
		updatedAt: now,
		now:       time.Now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Owner returns the subject that created the session
func (s *Session) Owner() string { return s.owner }

// Step returns the current step
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// LastActivity is when the session last changed
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Busy reports whether a generation is running
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy || s.edit.Pending()
}

// Progress is the simulated completion percentage
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// LastError returns the most recent classified failure
func (s *Session) LastError() *ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastError == nil {
		return nil
	}
	info := *s.lastError
	return &info
}

// SetJobDescription replaces the target job description
func (s *Session) SetJobDescription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobDescription = text
	s.touch()
}

// ToggleRole adds a role or removes it when already selected
func (s *Session) ToggleRole(role string) {
	role = strings.TrimSpace(role)
	if role == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.roles, role); i >= 0 {
		s.roles = slices.Delete(s.roles, i, i+1)
	} else {
		s.roles = append(s.roles, role)
	}
	s.touch()
}

// SetRoles replaces the selection, keeping first occurrences in order
func (s *Session) SetRoles(roles []string) {
	selected := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role != "" && !slices.Contains(selected, role) {
			selected = append(selected, role)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = selected
	s.touch()
}

// SelectedRoles returns the selection in insertion order
func (s *Session) SelectedRoles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.roles)
}

// SetUpload validates and stores the resume file. A rejected file leaves
// any earlier upload in place.
func (s *Session) SetUpload(file resume.Upload) error {
	if err := ValidateUpload(&file, s.opts.MaxUploadSize); err != nil {
		info := Classify(err)
		s.mu.Lock()
		s.lastError = &info
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = &file
	s.lastError = nil
	s.touch()
	return nil
}

// ClearUpload drops the stored file
func (s *Session) ClearUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = nil
	s.touch()
}

// CanProceed reports whether the current step is complete
func (s *Session) CanProceed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canProceed()
}

func (s *Session) canProceed() bool {
	switch s.step {
	case StepJobDescription:
		return strings.TrimSpace(s.jobDescription) != ""
	case StepJobRoles:
		return len(s.roles) > 0
	case StepUpload:
		return s.file != nil
	default:
		return false
	}
}

// Next advances one input step. Nothing changes when the step is
// incomplete. The upload step is only left through Generate.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step >= StepUpload {
		return ErrNoManualAdvance
	}
	if !s.canProceed() {
		return ErrStepIncomplete
	}
	s.step++
	s.touch()
	return nil
}

// Back returns to the previous input step. Only the roles and upload steps
// can go back.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepJobRoles && s.step != StepUpload {
		return ErrBackNotAllowed
	}
	s.step--
	s.touch()
	return nil
}

// Generate submits the inputs and moves to the preview on success. On
// failure the session returns to the upload step with LastError set. A
// progress ticker runs while the call is outstanding. Only the upload step
// can generate; the preview is left through Reset or MarkDownloaded.
func (s *Session) Generate(ctx context.Context, gen Generator, token string) (*resume.Result, error) {
	s.mu.Lock()
	if s.busy || s.edit.Pending() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.step != StepUpload {
		s.mu.Unlock()
		return nil, ErrGenerateNotAllowed
	}
	if strings.TrimSpace(s.jobDescription) == "" || len(s.roles) == 0 || s.file == nil {
		info := MissingInformation
		s.lastError = &info
		s.mu.Unlock()
		return nil, ErrMissingInformation
	}

	file := *s.file
	description := s.jobDescription
	roles := slices.Clone(s.roles)
	epoch := s.epoch
	s.busy = true
	s.step = StepProcessing
	s.progress = 0
	s.lastError = nil
	s.touch()
	s.mu.Unlock()

	stop := s.startProgress()
	result, err := gen.ParseResume(ctx, file, description, roles, token)
	stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// Reset while the call was in flight; the outcome belongs to nobody
		return result, err
	}
	s.busy = false
	s.touch()

	if err != nil {
		info := Classify(err)
		s.lastError = &info
		s.step = StepUpload
		s.progress = 0
		return nil, err
	}

	s.progress = 100
	s.generatedURL = result.ResumeURL
	s.editedURL = ""
	s.editMode = false
	s.edit.Reset()
	s.step = StepPreview
	return result, nil
}

// startProgress advances the progress bar until the returned func is called
func (s *Session) startProgress() (stop func()) {
	ticker := time.NewTicker(s.opts.ProgressInterval)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if s.busy {
					s.progress = min(s.progress+s.opts.ProgressStep, s.opts.ProgressCap)
				}
				s.mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
		<-exited
	}
}

// EnterEditMode opens the edit chat over the current artifact
func (s *Session) EnterEditMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepPreview || s.generatedURL == "" {
		return ErrNotReady
	}
	if !s.editMode {
		s.editMode = true
		if s.edit.BaseURL() == "" {
			s.edit.Start(s.currentURL())
		}
	}
	s.touch()
	return nil
}

// ExitEditMode closes the chat and stays on the preview. Edits made so far
// remain the current artifact.
func (s *Session) ExitEditMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = false
	s.touch()
}

// EditMode reports whether the chat is open
func (s *Session) EditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode
}

// SendEdit runs one chat turn and records the edited artifact
func (s *Session) SendEdit(ctx context.Context, editor editsession.Editor, instruction, token string) (*editsession.Message, error) {
	s.mu.Lock()
	if !s.editMode {
		s.mu.Unlock()
		return nil, ErrEditModeInactive
	}
	chat := s.edit
	epoch := s.epoch
	s.mu.Unlock()

	reply, err := chat.Send(ctx, editor, instruction, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil, ErrSessionReset
	}
	if err != nil {
		return nil, err
	}
	s.editedURL = chat.BaseURL()
	s.touch()
	return reply, nil
}

// Edit exposes the chat session
func (s *Session) Edit() *editsession.Session {
	return s.edit
}

// CurrentResumeURL is the latest artifact: the edited one when present
func (s *Session) CurrentResumeURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL()
}

func (s *Session) currentURL() string {
	if s.editedURL != "" {
		return s.editedURL
	}
	return s.generatedURL
}

// Reset returns to the initial state, discarding inputs, artifacts and chat
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.epoch++
	s.busy = false
	s.step = StepJobDescription
	s.jobDescription = ""
	s.roles = nil
	s.file = nil
	s.generatedURL = ""
	s.editedURL = ""
	s.editMode = false
	s.progress = 0
	s.lastError = nil
	s.edit.Reset()
	s.touch()
}

// Download describes the artifact handed to the user
type Download struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// MarkDownloaded returns the canonical artifact and resets the session
func (s *Session) MarkDownloaded() (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepPreview || s.currentURL() == "" {
		return nil, ErrNotReady
	}
	if s.edit.Pending() {
		return nil, ErrBusy
	}
	canonical := artifact.StripCacheBust(s.currentURL())
	dl := &Download{URL: canonical, Filename: artifact.DownloadFilename(canonical)}
	s.reset()
	return dl, nil
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}
