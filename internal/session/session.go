package session

import (
	"time"

	"skillwizard/internal/types"
	"skillwizard/internal/wizard"

	"github.com/google/uuid"
)

// Slot identifies a piece of session state written by a remote action.
// Actions that write the same slot supersede each other.
type Slot string

const (
	SlotResume    Slot = "resume"
	SlotQuestions Slot = "questions"
	SlotResults   Slot = "results"
	SlotJobs      Slot = "jobs"
)

// NoticeKind is the flavour of a user notification
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Notice is a one-shot message shown on the next render
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Defaults seeds the test setup form of a new session
type Defaults struct {
	QuestionKind  types.QuestionKind
	QuestionCount int
}

// Session is the state of one visitor's pass through the wizard. It lives from
// the first page load until the visitor restarts or the store expires it.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Wizard *wizard.Tracker `json:"wizard"`
	Router *wizard.Router  `json:"router"`

	Resume         *types.ResumeProfile `json:"resume,omitempty"`
	Questions      []types.TestQuestion `json:"questions,omitempty"`
	QuestionKind   types.QuestionKind   `json:"question_kind"`
	QuestionCount  int                  `json:"question_count"`
	LastWeaknesses []string             `json:"last_weaknesses,omitempty"`

	// Results and Jobs hold what the results and jobs sections display.
	// No action reads them back.
	Results    *types.TestResults        `json:"results,omitempty"`
	Jobs       []types.JobRecommendation `json:"jobs,omitempty"`
	JobsLoaded bool                      `json:"jobs_loaded,omitempty"`

	Notice  *Notice         `json:"notice,omitempty"`
	Busy    string          `json:"busy,omitempty"`
	Pending map[Slot]PendingCall `json:"pending,omitempty"`
}

// PendingCall is the request token of an action waiting on the backend
type PendingCall struct {
	Token   string    `json:"token"`
	Started time.Time `json:"started"`
}

// New constructs a session positioned at the first wizard step
func New(defaults Defaults) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Wizard:        wizard.NewTracker(),
		Router:        wizard.NewRouter(),
		QuestionKind:  defaults.QuestionKind,
		QuestionCount: defaults.QuestionCount,
		Pending:       make(map[Slot]PendingCall),
	}
}

// Begin issues a request token for slot. Any earlier token for the same slot
// is superseded and its response will be discarded.
func (s *Session) Begin(slot Slot) string {
	if s.Pending == nil {
		s.Pending = make(map[Slot]PendingCall)
	}
	token := uuid.NewString()
	s.Pending[slot] = PendingCall{Token: token, Started: time.Now().UTC()}
	return token
}

// IsCurrent reports whether token is still the latest one issued for slot
func (s *Session) IsCurrent(slot Slot, token string) bool {
	return token != "" && s.Pending[slot].Token == token
}

// Finish releases slot if token is still current
func (s *Session) Finish(slot Slot, token string) {
	if s.IsCurrent(slot, token) {
		delete(s.Pending, slot)
	}
}

// ExpirePending drops calls started before cutoff. Their process died before
// settling them, so no response will ever clear them. Busy is cleared once
// nothing is pending. Reports whether anything was dropped.
func (s *Session) ExpirePending(cutoff time.Time) bool {
	expired := false
	for slot, call := range s.Pending {
		if call.Started.Before(cutoff) {
			delete(s.Pending, slot)
			expired = true
		}
	}
	if len(s.Pending) == 0 {
		s.Busy = ""
	}
	return expired
}

// Notify replaces the pending notice
func (s *Session) Notify(kind NoticeKind, message string) {
	s.Notice = &Notice{Kind: kind, Message: message}
}

// TakeNotice returns the pending notice and clears it
func (s *Session) TakeNotice() *Notice {
	n := s.Notice
	s.Notice = nil
	return n
}

// ensure fills in parts that a decoded session may lack
func (s *Session) ensure() {
	if s.Wizard == nil {
		s.Wizard = wizard.NewTracker()
	}
	if s.Wizard.Values == nil {
		s.Wizard.Values = make(map[string]string)
	}
	if s.Router == nil {
		s.Router = wizard.NewRouter()
	}
	if s.Pending == nil {
		s.Pending = make(map[Slot]PendingCall)
	}
}
