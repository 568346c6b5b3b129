package triage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/medtriage/internal/fault"
	"github.com/linnemanlabs/medtriage/internal/symptom"
)

var (
	// ErrInvalidTransition means the event is not allowed in the session's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound means no session exists for the given ID.
	ErrNotFound = errors.New("session not found")
)

// The methods below are the only way a Session changes state. None of them do I/O;
// the Service performs backend calls and feeds the outcome back in.

func (s *Session) expect(event string, states ...State) error {
	for _, st := range states {
		if s.State == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, event, s.State)
}

func (s *Session) moveTo(st State) {
	s.State = st
	s.Error = ""
}

// BeginEmergency moves an idle session to symptom selection.
func (s *Session) BeginEmergency() error {
	if err := s.expect("begin_emergency", StateIdle); err != nil {
		return err
	}
	s.moveTo(StateSymptomSelection)
	return nil
}

// BeginFromTranscript starts the flow from a voice transcript. The session
// only leaves idle when the classifier recognised a concrete symptom; the
// returned tag is the classifier's output either way.
func (s *Session) BeginFromTranscript(transcript string) (symptom.Tag, error) {
	if err := s.expect("begin_from_transcript", StateIdle); err != nil {
		return "", err
	}
	tag := symptom.Classify(transcript)
	if !tag.Known() {
		return tag, nil
	}
	s.Transcript = transcript
	s.moveTo(StateSymptomSelection)
	return tag, s.SelectSymptom(tag)
}

// BeginCaretaker enters caretaker setup. Only reachable from idle.
func (s *Session) BeginCaretaker() error {
	if err := s.expect("begin_caretaker", StateIdle); err != nil {
		return err
	}
	s.moveTo(StateCaretakerSetup)
	return nil
}

// CommitCaretaker records who the report is about and moves on to symptom
// selection. There is no way back to idle afterwards.
func (s *Session) CommitCaretaker(data CaretakerData) error {
	if err := s.expect("commit_caretaker", StateCaretakerSetup); err != nil {
		return err
	}
	if err := validate.Struct(data); err != nil {
		return fault.Validation("commit_caretaker", err)
	}
	s.IsCaretaker = true
	s.CaretakerData = &data
	s.moveTo(StateSymptomSelection)
	return nil
}

// SelectSymptom sets the session's symptom. The session stays in symptom
// selection until ReceiveQuestions or QuestionsFailed is applied.
func (s *Session) SelectSymptom(tag symptom.Tag) error {
	if err := s.expect("select_symptom", StateSymptomSelection); err != nil {
		return err
	}
	if !tag.Valid() {
		return fault.Validation("select_symptom", fmt.Errorf("unknown symptom %q (want one of %v)", tag, symptom.All()))
	}
	if s.Symptom != "" {
		return fmt.Errorf("%w: symptom already set to %s", ErrInvalidTransition, s.Symptom)
	}
	s.Symptom = tag
	s.Error = ""
	return nil
}

// AwaitingQuestions reports whether a symptom is set and its questions have not arrived yet.
func (s *Session) AwaitingQuestions() bool {
	return s.State == StateSymptomSelection && s.Symptom != ""
}

// ReceiveQuestions starts questioning, or skips straight to classifying when
// the sequence is empty.
func (s *Session) ReceiveQuestions(qs []Question) error {
	if err := s.expectAwaitingQuestions("receive_questions"); err != nil {
		return err
	}
	s.Questions = append([]Question(nil), qs...)
	s.QuestionIndex = 0
	if len(s.Questions) == 0 {
		s.moveTo(StateClassifying)
		return nil
	}
	s.moveTo(StateQuestioning)
	return nil
}

// QuestionsFailed degrades to classification without any answers. The error
// is not surfaced; triage must not block on a failed question fetch.
func (s *Session) QuestionsFailed() error {
	if err := s.expectAwaitingQuestions("questions_failed"); err != nil {
		return err
	}
	s.Questions = nil
	s.QuestionIndex = 0
	s.moveTo(StateClassifying)
	return nil
}

func (s *Session) expectAwaitingQuestions(event string) error {
	if err := s.expect(event, StateSymptomSelection); err != nil {
		return err
	}
	if s.Symptom == "" {
		return fmt.Errorf("%w: %s before a symptom was selected", ErrInvalidTransition, event)
	}
	return nil
}

// SubmitAnswer records the answer to the current question and advances the
// cursor. Answering the last question moves the session to classifying.
func (s *Session) SubmitAnswer(answer string) error {
	if err := s.expect("submit_answer", StateQuestioning); err != nil {
		return err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fault.Validation("submit_answer", errors.New("answer is required"))
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return fmt.Errorf("%w: no question pending", ErrInvalidTransition)
	}
	s.TriageAnswers = append(s.TriageAnswers, Answer{Question: q.Text, Answer: answer})
	s.QuestionIndex++
	if s.QuestionIndex >= len(s.Questions) {
		s.moveTo(StateClassifying)
		return nil
	}
	s.Error = ""
	return nil
}

// ReceiveClassification stores the verdict and shows the result.
func (s *Session) ReceiveClassification(c Classification) error {
	if err := s.expect("receive_classification", StateClassifying); err != nil {
		return err
	}
	s.Severity = c.Severity
	s.Instructions = append([]string(nil), c.Instructions...)
	s.moveTo(StateResultDisplayed)
	return nil
}

// ClassificationFailed keeps the session in classifying and records the
// notification shown to the user, who may retry or abandon.
func (s *Session) ClassificationFailed(err error) error {
	if terr := s.expect("classification_failed", StateClassifying); terr != nil {
		return terr
	}
	s.Error = userMessage(err)
	return nil
}

func userMessage(err error) string {
	switch fault.KindOf(err) {
	case fault.KindNetwork:
		return "Could not reach the triage service. Please try again."
	case fault.KindEmptyResult:
		return "The triage service returned no result. Please try again."
	default:
		return "Classification failed. Please try again."
	}
}
