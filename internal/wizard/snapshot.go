package wizard

import (
	"slices"
	"time"

	"resumewizard/internal/artifact"
	"resumewizard/internal/editsession"
)

// FileInfo describes the uploaded resume without its content
type FileInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Snapshot is a serializable view of a session
type Snapshot struct {
	ID             string                `json:"id"`
	Step           Step                  `json:"step"`
	StepName       string                `json:"step_name"`
	CanProceed     bool                  `json:"can_proceed"`
	JobDescription string                `json:"job_description"`
	SelectedRoles  []string              `json:"selected_roles"`
	File           *FileInfo             `json:"file,omitempty"`
	GeneratedURL   string                `json:"generated_url,omitempty"`
	EditedURL      string                `json:"edited_url,omitempty"`
	CurrentURL     string                `json:"current_url,omitempty"`
	PreviewURL     string                `json:"preview_url,omitempty"`
	FileType       artifact.FileType     `json:"file_type,omitempty"`
	EditMode       bool                  `json:"edit_mode"`
	Busy           bool                  `json:"busy"`
	Progress       int                   `json:"progress"`
	LastError      *ErrorInfo            `json:"last_error,omitempty"`
	Edit           *editsession.Snapshot `json:"edit,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Snapshot captures the session in one consistent read
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.id,
		Step:           s.step,
		StepName:       s.step.String(),
		CanProceed:     s.canProceed(),
		JobDescription: s.jobDescription,
		SelectedRoles:  slices.Clone(s.roles),
		GeneratedURL:   s.generatedURL,
		EditedURL:      s.editedURL,
		CurrentURL:     s.currentURL(),
		EditMode:       s.editMode,
		Busy:           s.busy,
		Progress:       s.progress,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
	if snap.SelectedRoles == nil {
		snap.SelectedRoles = []string{}
	}
	if s.file != nil {
		snap.File = &FileInfo{Filename: s.file.Filename, ContentType: s.file.ContentType, Size: s.file.Size()}
	}
	if snap.CurrentURL != "" {
		snap.PreviewURL = artifact.PreviewURL(snap.CurrentURL, s.now())
		snap.FileType = artifact.DetectFileType(snap.CurrentURL)
	}
	if s.lastError != nil {
		info := *s.lastError
		snap.LastError = &info
	}
	if s.editMode {
		edit := s.edit.Snapshot()
		snap.Edit = &edit
	}
	return snap
}
