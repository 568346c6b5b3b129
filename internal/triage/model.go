package triage

import (
	"strings"
	"time"

	"github.com/linnemanlabs/medtriage/internal/symptom"
)

// State tracks where a session is in the guided flow.
type State string

const (
	// StateIdle means created, no emergency signalled yet
	StateIdle State = "idle"

	// StateCaretakerSetup means collecting details about the person being reported on
	StateCaretakerSetup State = "caretaker_setup"

	// StateSymptomSelection means waiting for a symptom, or for its questions
	StateSymptomSelection State = "symptom_selection"

	// StateQuestioning means walking the question sequence
	StateQuestioning State = "questioning"

	// StateClassifying means all answers are in and a severity is needed
	StateClassifying State = "classifying"

	// StateResultDisplayed means the severity and guidance are available
	StateResultDisplayed State = "result_displayed"
)

// Severity is the backend's classification of a finished session.
type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityWarning   Severity = "warning"
	SeverityStable    Severity = "stable"
)

// Consciousness of the person a caretaker reports on.
type Consciousness string

const (
	Conscious   Consciousness = "conscious"
	Unconscious Consciousness = "unconscious"
	Unknown     Consciousness = "unknown"
)

// CaretakerData describes the person a caretaker reports on. Both fields are
// optional; Age is whole years as digits only.
type CaretakerData struct {
	Age       string        `json:"age,omitempty" validate:"omitempty,number,max=3"`
	Conscious Consciousness `json:"conscious,omitempty" validate:"omitempty,oneof=conscious unconscious unknown"`
}

// Question is one step of the triage question sequence.
type Question struct {
	Text string `json:"text"`
}

// Answer pairs a question with the user's answer, in the order asked.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Classification is the backend's verdict for a session.
type Classification struct {
	Severity     Severity `json:"severity"`
	Instructions []string `json:"instructions,omitempty"`
}

// Session is one emergency flow. It is mutated only through its transition methods.
type Session struct {
	ID            string         `json:"id"`
	State         State          `json:"state"`
	Symptom       symptom.Tag    `json:"symptom,omitempty"`
	Transcript    string         `json:"transcript,omitempty"`
	IsCaretaker   bool           `json:"is_caretaker"`
	CaretakerData *CaretakerData `json:"caretaker_data,omitempty"`
	Questions     []Question     `json:"questions,omitempty"`
	QuestionIndex int            `json:"question_index"`
	TriageAnswers []Answer       `json:"triage_answers"`
	Severity      Severity       `json:"severity,omitempty"`
	Instructions  []string       `json:"instructions,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewSession returns an idle session with the given ID.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		State:         StateIdle,
		TriageAnswers: []Answer{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CurrentQuestion returns the question awaiting an answer, if any.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.State != StateQuestioning || s.QuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.QuestionIndex], true
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *Session) Clone() *Session {
	cp := *s
	if s.CaretakerData != nil {
		cd := *s.CaretakerData
		cp.CaretakerData = &cd
	}
	cp.Questions = append([]Question(nil), s.Questions...)
	cp.TriageAnswers = append([]Answer{}, s.TriageAnswers...)
	cp.Instructions = append([]string(nil), s.Instructions...)
	return &cp
}

// ParseSeverity normalizes a backend severity value.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityEmergency, SeverityWarning, SeverityStable:
		return sev, true
	default:
		return "", false
	}
}
