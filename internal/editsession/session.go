// Package editsession runs the bounded edit-with-AI conversation over a
// generated resume.
package editsession

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"time"

	"resumewizard/internal/artifact"
	"resumewizard/internal/errors"
	"resumewizard/internal/resume"

	"github.com/google/uuid"
)

// DefaultLimit is the number of successful edits allowed per artifact
const DefaultLimit = 5

// Chat copy shown to the user
const (
	SuccessText         = "I've processed your request. The resume has been updated. Check the preview on the right."
	FailureText         = "Unable to process your request"
	GreetingText        = "Your resume is ready. Tell me what you would like to change."
	DefaultPlaceholder  = "Describe the changes you want to make..."
	LimitReachedMessage = "Prompt limit reached. Please download your resume."
)

var (
	ErrEmptyInstruction = errors.NewValidationError(errors.ErrCodeInvalidRequest, "instruction must not be empty", nil)
	ErrBusy             = errors.NewStateError(errors.ErrCodeInvalidTransition, "an edit is already in progress", nil)
	ErrTurnLimitReached = errors.NewStateError(errors.ErrCodeTurnLimitReached, LimitReachedMessage, nil)
	ErrNoResume         = errors.NewStateError(errors.ErrCodeInvalidTransition, "no resume to edit", nil)
	ErrSuperseded       = errors.NewStateError(errors.ErrCodeInvalidTransition, "chat was restarted while the edit was running", nil)
)

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleThinking  Role = "thinking"
)

// Message is one chat entry
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Editor applies an instruction to a resume and returns its new locator
type Editor interface {
	EditResume(ctx context.Context, resumeURL, instruction, token string) (*resume.Result, error)
}

// Session is the chat state for one artifact. It is safe for concurrent
// use; only one send may be outstanding at a time.
type Session struct {
	mu sync.Mutex

	messages   []Message
	limit      int
	baseURL    string
	previewURL string
	input      string
	op         *PendingOp

	now func() time.Time
}

// New creates an empty session. A non-positive limit uses DefaultLimit.
func New(limit int) *Session {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Session{limit: limit, op: &PendingOp{}, now: time.Now}
}

// Start points the session at a freshly generated artifact and greets
// the user. Any earlier history is dropped.
func (s *Session) Start(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.baseURL = artifact.StripCacheBust(baseURL)
	s.previewURL = artifact.PreviewURL(s.baseURL, now)
	s.input = ""
	s.op = &PendingOp{}
	s.messages = []Message{s.newMessage(RoleAssistant, GreetingText, now)}
}

// Reset clears the session entirely
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.baseURL = ""
	s.previewURL = ""
	s.input = ""
	s.op = &PendingOp{}
}

// Send runs one edit turn. The user message and a thinking placeholder are
// shown immediately; on failure both are withdrawn and the instruction is
// put back in the input so the turn does not count. A reply that arrives
// after Reset or Start is dropped.
func (s *Session) Send(ctx context.Context, editor Editor, instruction, token string) (*Message, error) {
	instruction = strings.TrimSpace(instruction)

	s.mu.Lock()
	if instruction == "" {
		s.mu.Unlock()
		return nil, ErrEmptyInstruction
	}
	if s.op.State() == OpPending {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.turnCount() >= s.limit {
		s.mu.Unlock()
		return nil, ErrTurnLimitReached
	}
	if s.baseURL == "" {
		s.mu.Unlock()
		return nil, ErrNoResume
	}

	now := s.now()
	user := s.newMessage(RoleUser, instruction, now)
	thinking := s.newMessage(RoleThinking, "", now)
	op := &PendingOp{}
	if err := op.begin(instruction, user.ID, thinking.ID); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.op = op
	s.messages = append(s.messages, user, thinking)
	s.input = ""
	target := s.baseURL
	s.mu.Unlock()

	result, err := editor.EditResume(ctx, target, instruction, token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.op != op {
		return nil, ErrSuperseded
	}
	if err != nil {
		s.rollback(op)
		return nil, err
	}

	s.messages = slices.DeleteFunc(s.messages, func(m Message) bool { return m.ID == op.placeholderID })
	done := s.now()
	s.baseURL = artifact.StripCacheBust(result.ResumeURL)
	s.previewURL = artifact.PreviewURL(s.baseURL, done)
	reply := s.newMessage(RoleAssistant, SuccessText, done)
	s.messages = append(s.messages, reply)
	if err := op.commit(); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (s *Session) rollback(op *PendingOp) {
	s.messages = slices.DeleteFunc(s.messages, func(m Message) bool {
		return m.ID == op.userMessageID || m.ID == op.placeholderID
	})
	s.input = op.instruction
	s.messages = append(s.messages, s.newMessage(RoleAssistant, FailureText, s.now()))
	_ = op.rollback()
}

// TurnCount is the number of user messages that stuck
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount()
}

func (s *Session) turnCount() int {
	n := 0
	for _, m := range s.messages {
		if m.Role == RoleUser {
			n++
		}
	}
	// A pending user message is not a completed turn
	if s.op.State() == OpPending {
		n--
	}
	return n
}

// Remaining is the number of edits left
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.limit-s.turnCount(), 0)
}

// LimitReached reports whether no more edits are allowed
func (s *Session) LimitReached() bool {
	return s.Remaining() == 0
}

// InputPlaceholder is the hint shown in the instruction box
func (s *Session) InputPlaceholder() string {
	if s.LimitReached() {
		return LimitReachedMessage
	}
	return DefaultPlaceholder
}

// Messages returns a copy of the chat history
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Input is the text left in the instruction box
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInput replaces the draft instruction
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// BaseURL is the canonical locator of the latest artifact
func (s *Session) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// PreviewURL is the cache-busted locator for display
func (s *Session) PreviewURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewURL
}

// Limit is the configured turn limit
func (s *Session) Limit() int {
	return s.limit
}

// Pending reports whether a send is outstanding
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op.State() == OpPending
}

// LastOpState reports how the latest send ended
func (s *Session) LastOpState() OpState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op.State()
}

// Snapshot is a serializable view of the session
type Snapshot struct {
	Messages    []Message `json:"messages"`
	TurnCount   int       `json:"turn_count"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	BaseURL     string    `json:"base_url,omitempty"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Input       string    `json:"input"`
	Placeholder string    `json:"placeholder"`
	Pending     bool      `json:"pending"`
}

// Snapshot captures the session in one consistent read
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.turnCount()
	remaining := max(s.limit-turns, 0)
	placeholder := DefaultPlaceholder
	if remaining == 0 {
		placeholder = LimitReachedMessage
	}
	messages := slices.Clone(s.messages)
	if messages == nil {
		messages = []Message{}
	}
	return Snapshot{
		Messages:    messages,
		TurnCount:   turns,
		Limit:       s.limit,
		Remaining:   remaining,
		BaseURL:     s.baseURL,
		PreviewURL:  s.previewURL,
		Input:       s.input,
		Placeholder: placeholder,
		Pending:     s.op.State() == OpPending,
	}
}

func (s *Session) newMessage(role Role, text string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Role: role, Text: text, Timestamp: at}
}

// IsTurnLimit reports whether err is the turn limit rejection
func IsTurnLimit(err error) bool {
	return stderrors.Is(err, ErrTurnLimitReached)
}
