package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"resumewizard/internal/editsession"
	"resumewizard/internal/errors"
	"resumewizard/internal/resume"
	"resumewizard/internal/wizard"
)

// Edit turn outcomes reported to the recorder
const (
	editCommitted = "committed"
	editFailed    = "failed"
	editRejected  = "rejected"
)

type jobDescriptionRequest struct {
	JobDescription string `json:"job_description"`
}

type rolesRequest struct {
	Roles  []string `json:"roles"`
	Toggle string   `json:"toggle,omitempty"`
}

type editModeRequest struct {
	Enabled bool `json:"enabled"`
}

type editMessageRequest struct {
	Instruction string `json:"instruction"`
}

// GenerateResponse is returned by a successful generation
type GenerateResponse struct {
	ResumeURL string          `json:"resume_url"`
	Session   wizard.Snapshot `json:"session"`
}

// EditResponse is returned by a successful edit turn
type EditResponse struct {
	Reply      *editsession.Message `json:"reply"`
	CurrentURL string               `json:"current_url"`
	Edit       editsession.Snapshot `json:"edit"`
}

// JobRolesResponse lists roles for the selection step
type JobRolesResponse struct {
	JobRoles []string `json:"job_roles"`
	Fallback bool     `json:"fallback"`
}

// owner is the session owner for the caller; anonymous callers share ""
func owner(r *http.Request) string {
	p, ok := PrincipalFromContext(r.Context())
	if !ok || p.Kind == PrincipalAnonymous {
		return ""
	}
	return p.Subject
}

// upstreamToken is the bearer token to present to the resume backend
func upstreamToken(r *http.Request) string {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p.Token
	}
	return ""
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	if s.sessions == nil {
		writeErrorResponse(w, "Unavailable", "wizard sessions are not enabled", http.StatusServiceUnavailable)
		return nil, false
	}
	sess, err := s.sessions.Get(r.PathValue("id"), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeErrorResponse(w, "Unavailable", "wizard sessions are not enabled", http.StatusServiceUnavailable)
		return
	}
	sess := s.sessions.Create(owner(r))
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeErrorResponse(w, "Unavailable", "wizard sessions are not enabled", http.StatusServiceUnavailable)
		return
	}
	if err := s.sessions.Delete(r.PathValue("id"), owner(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jobDescriptionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req jobDescriptionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.SetJobDescription(req.JobDescription)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// sessionRolesHandler replaces the selection, or flips one role when toggle is set
func (s *Server) sessionRolesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req rolesRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Toggle != "" {
		sess.ToggleRole(req.Toggle)
	} else {
		sess.SetRoles(req.Roles)
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// uploadHandler stores the multipart "file" part on the session
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			s.writeWizardError(w, wizard.ErrFileTooLarge)
			return
		}
		s.writeError(w, r, errors.NewValidationError(errors.ErrCodeInvalidRequest, "multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			s.writeWizardError(w, wizard.ErrFileTooLarge)
			return
		}
		s.writeError(w, r, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read uploaded file", err))
		return
	}

	upload := resume.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if err := sess.SetUpload(upload); err != nil {
		s.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) clearUploadHandler(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		sess.ClearUpload()
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) nextHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Next(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) backHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Back(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// generateHandler runs generation synchronously. The call is detached from
// the client connection so the session always records the backend outcome.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := sess.Generate(ctx, s.resume, upstreamToken(r))
	if err != nil {
		if stderrors.Is(err, wizard.ErrBusy) || stderrors.Is(err, wizard.ErrGenerateNotAllowed) {
			s.writeError(w, r, err)
			return
		}
		info := wizard.Classify(err)
		s.recorder.RecordGeneration(ctx, false, info.StatusCode)
		s.Logger.Warn("Resume generation failed",
			"session_id", sess.ID(),
			"status", info.StatusCode,
			"title", info.Title,
			"error", err.Error())
		writeJSON(w, info.StatusCode, info)
		return
	}

	s.recorder.RecordGeneration(ctx, true, http.StatusOK)
	writeJSON(w, http.StatusOK, GenerateResponse{ResumeURL: result.ResumeURL, Session: sess.Snapshot()})
}

func (s *Server) resetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		sess.Reset()
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) editModeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editModeRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Enabled {
		if err := sess.EnterEditMode(); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		sess.ExitEditMode()
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) editMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Edit().Snapshot())
	}
}

// sendEditHandler runs one edit turn. Limit and validation rejections never
// reach the backend.
func (s *Server) sendEditHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	reply, err := sess.SendEdit(ctx, s.resume, req.Instruction, upstreamToken(r))
	if err != nil {
		outcome := editFailed
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			outcome = editRejected
		}
		s.recorder.RecordEditTurn(ctx, outcome)
		s.writeError(w, r, err)
		return
	}

	s.recorder.RecordEditTurn(ctx, editCommitted)
	writeJSON(w, http.StatusOK, EditResponse{
		Reply:      reply,
		CurrentURL: sess.CurrentResumeURL(),
		Edit:       sess.Edit().Snapshot(),
	})
}

func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	dl, err := sess.MarkDownloaded()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dl)
}

// writeWizardError renders the user-facing copy for a wizard failure
func (s *Server) writeWizardError(w http.ResponseWriter, err error) {
	info := wizard.Classify(err)
	writeJSON(w, info.StatusCode, info)
}

func (s *Server) jobRolesHandler(w http.ResponseWriter, r *http.Request) {
	if s.roles == nil {
		writeErrorResponse(w, "Unavailable", "job roles are not enabled", http.StatusServiceUnavailable)
		return
	}
	roles, fallback := s.roles.Roles(r.Context(), upstreamToken(r))
	w.Header().Set("Cache-Control", "private, no-store")
	writeJSON(w, http.StatusOK, JobRolesResponse{JobRoles: roles, Fallback: fallback})
}

func (s *Server) jobRolesResetHandler(w http.ResponseWriter, r *http.Request) {
	if s.roles == nil {
		writeErrorResponse(w, "Unavailable", "job roles are not enabled", http.StatusServiceUnavailable)
		return
	}
	s.roles.Reset()
	s.Logger.Info("Job roles cache reset", "caller", owner(r))
	w.WriteHeader(http.StatusNoContent)
}
