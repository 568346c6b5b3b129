package triage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/medtriage/internal/fault"
	"github.com/linnemanlabs/medtriage/internal/symptom"
)

func idleSession() *Session {
	return NewSession("s-test", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// questioningSession returns a session for tag that has received qs.
func questioningSession(t *testing.T, tag symptom.Tag, qs ...string) *Session {
	t.Helper()
	s := idleSession()
	if err := s.BeginEmergency(); err != nil {
		t.Fatalf("BeginEmergency: %v", err)
	}
	if err := s.SelectSymptom(tag); err != nil {
		t.Fatalf("SelectSymptom: %v", err)
	}
	questions := make([]Question, 0, len(qs))
	for _, q := range qs {
		questions = append(questions, Question{Text: q})
	}
	if err := s.ReceiveQuestions(questions); err != nil {
		t.Fatalf("ReceiveQuestions: %v", err)
	}
	return s
}

func TestChestPainScenario(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.ChestPain, "Is pain radiating to arm?", "Are you sweating?")

	if s.State != StateQuestioning {
		t.Fatalf("state = %q, want %q", s.State, StateQuestioning)
	}
	if err := s.SubmitAnswer("yes"); err != nil {
		t.Fatalf("SubmitAnswer(yes): %v", err)
	}
	if s.State != StateQuestioning {
		t.Fatalf("state after first answer = %q, want %q", s.State, StateQuestioning)
	}
	if err := s.SubmitAnswer("no"); err != nil {
		t.Fatalf("SubmitAnswer(no): %v", err)
	}

	want := []Answer{
		{Question: "Is pain radiating to arm?", Answer: "yes"},
		{Question: "Are you sweating?", Answer: "no"},
	}
	if len(s.TriageAnswers) != len(want) {
		t.Fatalf("answers = %d, want %d", len(s.TriageAnswers), len(want))
	}
	for i := range want {
		if s.TriageAnswers[i] != want[i] {
			t.Errorf("answer[%d] = %+v, want %+v", i, s.TriageAnswers[i], want[i])
		}
	}
	if s.State != StateClassifying {
		t.Errorf("state = %q, want %q", s.State, StateClassifying)
	}
	if s.Symptom != symptom.ChestPain {
		t.Errorf("symptom = %q, want %q", s.Symptom, symptom.ChestPain)
	}
}

func TestSubmitAnswer_NAnswersReachClassifying(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 3, 7} {
		qs := make([]string, n)
		for i := range qs {
			qs[i] = string(rune('A' + i))
		}
		s := questioningSession(t, symptom.Fever, qs...)

		for i := range n {
			if s.State != StateQuestioning {
				t.Fatalf("n=%d: state before answer %d = %q, want questioning", n, i, s.State)
			}
			if s.QuestionIndex != i {
				t.Fatalf("n=%d: cursor = %d, want %d", n, s.QuestionIndex, i)
			}
			if err := s.SubmitAnswer("answer " + qs[i]); err != nil {
				t.Fatalf("n=%d: SubmitAnswer %d: %v", n, i, err)
			}
		}

		if s.State != StateClassifying {
			t.Errorf("n=%d: state = %q, want %q", n, s.State, StateClassifying)
		}
		if len(s.TriageAnswers) != n {
			t.Errorf("n=%d: answers = %d, want %d", n, len(s.TriageAnswers), n)
		}
		for i, a := range s.TriageAnswers {
			if a.Question != qs[i] || a.Answer != "answer "+qs[i] {
				t.Errorf("n=%d: answer[%d] = %+v", n, i, a)
			}
		}
		if s.QuestionIndex != len(s.Questions) {
			t.Errorf("n=%d: cursor = %d, want %d", n, s.QuestionIndex, len(s.Questions))
		}
	}
}

func TestReceiveQuestions_EmptySkipsQuestioning(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()
	_ = s.SelectSymptom(symptom.Breathing)

	if err := s.ReceiveQuestions(nil); err != nil {
		t.Fatalf("ReceiveQuestions: %v", err)
	}
	if s.State != StateClassifying {
		t.Errorf("state = %q, want %q", s.State, StateClassifying)
	}
	if len(s.TriageAnswers) != 0 {
		t.Errorf("answers = %d, want 0", len(s.TriageAnswers))
	}
}

func TestQuestionsFailed_DegradesToClassifying(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()
	_ = s.SelectSymptom(symptom.Accident)

	if err := s.QuestionsFailed(); err != nil {
		t.Fatalf("QuestionsFailed: %v", err)
	}
	if s.State != StateClassifying {
		t.Errorf("state = %q, want %q", s.State, StateClassifying)
	}
	if len(s.TriageAnswers) != 0 {
		t.Errorf("answers = %d, want 0", len(s.TriageAnswers))
	}
	if s.Error != "" {
		t.Errorf("error = %q, want none (failure is swallowed)", s.Error)
	}
}

func TestQuestions_RequireSymptom(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()

	if err := s.ReceiveQuestions([]Question{{Text: "q"}}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ReceiveQuestions before symptom: err = %v, want ErrInvalidTransition", err)
	}
	if err := s.QuestionsFailed(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("QuestionsFailed before symptom: err = %v, want ErrInvalidTransition", err)
	}
}

func TestSelectSymptom_SetExactlyOnce(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()

	if err := s.SelectSymptom(symptom.Fever); err != nil {
		t.Fatalf("SelectSymptom: %v", err)
	}
	if !s.AwaitingQuestions() {
		t.Error("expected session to await questions after symptom selection")
	}
	if err := s.SelectSymptom(symptom.ChestPain); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second SelectSymptom: err = %v, want ErrInvalidTransition", err)
	}
	if s.Symptom != symptom.Fever {
		t.Errorf("symptom = %q, want %q", s.Symptom, symptom.Fever)
	}
}

func TestSelectSymptom_RejectsUnknownTag(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()

	err := s.SelectSymptom(symptom.Tag("sneezing"))
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	// the message lists the accepted tags so a client can correct itself
	for _, tag := range symptom.All() {
		if !strings.Contains(err.Error(), string(tag)) {
			t.Errorf("err = %q, want it to mention %q", err.Error(), tag)
		}
	}
	if s.Symptom != "" {
		t.Errorf("symptom = %q, want unset", s.Symptom)
	}
}

func TestSelectSymptom_OtherIsAllowed(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()

	if err := s.SelectSymptom(symptom.Other); err != nil {
		t.Fatalf("SelectSymptom(other): %v", err)
	}
}

func TestSubmitAnswer_BlankIsValidationFailure(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.Fever, "How high is the temperature?")

	err := s.SubmitAnswer("   ")
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if s.QuestionIndex != 0 || len(s.TriageAnswers) != 0 {
		t.Errorf("cursor = %d, answers = %d; blank answer must not advance", s.QuestionIndex, len(s.TriageAnswers))
	}
}

func TestSubmitAnswer_TrimsWhitespace(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.Fever, "q")
	_ = s.SubmitAnswer("  yes \n")

	if s.TriageAnswers[0].Answer != "yes" {
		t.Errorf("answer = %q, want %q", s.TriageAnswers[0].Answer, "yes")
	}
}

func TestSubmitAnswer_AfterLastQuestionRejected(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.Fever, "q")
	_ = s.SubmitAnswer("yes")

	if err := s.SubmitAnswer("extra"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if len(s.TriageAnswers) != 1 {
		t.Errorf("answers = %d, want 1", len(s.TriageAnswers))
	}
}

func TestCaretakerFlow(t *testing.T) {
	t.Parallel()

	s := idleSession()
	if err := s.BeginCaretaker(); err != nil {
		t.Fatalf("BeginCaretaker: %v", err)
	}
	if s.State != StateCaretakerSetup {
		t.Fatalf("state = %q, want %q", s.State, StateCaretakerSetup)
	}

	if err := s.CommitCaretaker(CaretakerData{Age: "82", Conscious: Unconscious}); err != nil {
		t.Fatalf("CommitCaretaker: %v", err)
	}
	if s.State != StateSymptomSelection {
		t.Errorf("state = %q, want %q", s.State, StateSymptomSelection)
	}
	if !s.IsCaretaker {
		t.Error("IsCaretaker = false, want true")
	}
	if s.CaretakerData == nil || s.CaretakerData.Age != "82" || s.CaretakerData.Conscious != Unconscious {
		t.Errorf("CaretakerData = %+v", s.CaretakerData)
	}

	// one-way gate: the caretaker branch cannot be re-entered
	if err := s.BeginCaretaker(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BeginCaretaker after commit: err = %v, want ErrInvalidTransition", err)
	}
	if err := s.BeginEmergency(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BeginEmergency after commit: err = %v, want ErrInvalidTransition", err)
	}
}

func TestCommitCaretaker_EmptyDataAllowed(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginCaretaker()

	if err := s.CommitCaretaker(CaretakerData{}); err != nil {
		t.Fatalf("CommitCaretaker: %v", err)
	}
	if !s.IsCaretaker {
		t.Error("IsCaretaker = false, want true")
	}
}

func TestCommitCaretaker_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data CaretakerData
	}{
		{"non-numeric age", CaretakerData{Age: "old"}},
		{"age too long", CaretakerData{Age: "1234"}},
		{"negative age", CaretakerData{Age: "-5"}},
		{"fractional age", CaretakerData{Age: "1.5"}},
		{"signed age", CaretakerData{Age: "+7"}},
		{"unknown consciousness", CaretakerData{Conscious: "asleep"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := idleSession()
			_ = s.BeginCaretaker()

			err := s.CommitCaretaker(tt.data)
			if !errors.Is(err, fault.ErrValidation) {
				t.Fatalf("err = %v, want validation failure", err)
			}
			if s.State != StateCaretakerSetup {
				t.Errorf("state = %q, want %q", s.State, StateCaretakerSetup)
			}
			if s.IsCaretaker {
				t.Error("IsCaretaker = true after rejected commit")
			}
		})
	}
}

func TestCaretaker_OnlyFromIdle(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()

	if err := s.BeginCaretaker(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if err := s.CommitCaretaker(CaretakerData{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("CommitCaretaker outside setup: err = %v, want ErrInvalidTransition", err)
	}
}

func TestBeginFromTranscript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		wantTag    symptom.Tag
		wantState  State
	}{
		{"known symptom selects it", "my chest pain is getting worse", symptom.ChestPain, StateSymptomSelection},
		{"breathing beats unconscious", "unresponsive and not breathing", symptom.Breathing, StateSymptomSelection},
		{"unrecognised stays idle", "hello is anyone there", symptom.Other, StateIdle},
		{"empty stays idle", "", symptom.Other, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := idleSession()
			tag, err := s.BeginFromTranscript(tt.transcript)
			if err != nil {
				t.Fatalf("BeginFromTranscript: %v", err)
			}
			if tag != tt.wantTag {
				t.Errorf("tag = %q, want %q", tag, tt.wantTag)
			}
			if s.State != tt.wantState {
				t.Errorf("state = %q, want %q", s.State, tt.wantState)
			}
			if tt.wantState == StateSymptomSelection {
				if s.Symptom != tt.wantTag {
					t.Errorf("symptom = %q, want %q", s.Symptom, tt.wantTag)
				}
				if s.Transcript != tt.transcript {
					t.Errorf("transcript = %q, want %q", s.Transcript, tt.transcript)
				}
			} else if s.Symptom != "" {
				t.Errorf("symptom = %q, want unset", s.Symptom)
			}
		})
	}
}

func TestBeginFromTranscript_OnlyFromIdle(t *testing.T) {
	t.Parallel()

	s := idleSession()
	_ = s.BeginEmergency()

	if _, err := s.BeginFromTranscript("chest pain"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.ChestPain)
	if s.State != StateClassifying {
		t.Fatalf("state = %q, want %q", s.State, StateClassifying)
	}

	if err := s.ClassificationFailed(fault.Network("classify_emergency", errors.New("refused"))); err != nil {
		t.Fatalf("ClassificationFailed: %v", err)
	}
	if s.State != StateClassifying {
		t.Errorf("state after failure = %q, want %q", s.State, StateClassifying)
	}
	if s.Error == "" {
		t.Error("expected user-visible error after failure")
	}

	err := s.ReceiveClassification(Classification{
		Severity:     SeverityEmergency,
		Instructions: []string{"Call emergency services", "Chew an aspirin"},
	})
	if err != nil {
		t.Fatalf("ReceiveClassification: %v", err)
	}
	if s.State != StateResultDisplayed {
		t.Errorf("state = %q, want %q", s.State, StateResultDisplayed)
	}
	if s.Severity != SeverityEmergency {
		t.Errorf("severity = %q, want %q", s.Severity, SeverityEmergency)
	}
	if len(s.Instructions) != 2 {
		t.Errorf("instructions = %d, want 2", len(s.Instructions))
	}
	if s.Error != "" {
		t.Errorf("error = %q, want cleared on success", s.Error)
	}
}

func TestUserMessage_ByKind(t *testing.T) {
	t.Parallel()

	network := userMessage(fault.Network("op", errors.New("x")))
	empty := userMessage(fault.Empty("op", "x"))
	other := userMessage(errors.New("x"))

	if network == empty || empty == other || network == other {
		t.Errorf("expected distinct messages, got %q, %q, %q", network, empty, other)
	}
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()

	idle := idleSession()
	if err := idle.SubmitAnswer("yes"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SubmitAnswer in idle: err = %v", err)
	}
	if err := idle.SelectSymptom(symptom.Fever); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SelectSymptom in idle: err = %v", err)
	}
	if err := idle.ReceiveClassification(Classification{Severity: SeverityStable}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ReceiveClassification in idle: err = %v", err)
	}
	if err := idle.ClassificationFailed(errors.New("x")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ClassificationFailed in idle: err = %v", err)
	}

	done := questioningSession(t, symptom.Fever)
	_ = done.ReceiveClassification(Classification{Severity: SeverityStable})
	if err := done.ReceiveClassification(Classification{Severity: SeverityEmergency}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second ReceiveClassification: err = %v", err)
	}
	if done.Severity != SeverityStable {
		t.Errorf("severity = %q, want %q", done.Severity, SeverityStable)
	}
}

func TestCurrentQuestion(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.Fever, "first", "second")

	q, ok := s.CurrentQuestion()
	if !ok || q.Text != "first" {
		t.Errorf("CurrentQuestion = (%q, %v), want (first, true)", q.Text, ok)
	}
	_ = s.SubmitAnswer("a")
	q, ok = s.CurrentQuestion()
	if !ok || q.Text != "second" {
		t.Errorf("CurrentQuestion = (%q, %v), want (second, true)", q.Text, ok)
	}
	_ = s.SubmitAnswer("b")
	if _, ok := s.CurrentQuestion(); ok {
		t.Error("expected no current question once classifying")
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Severity
		wantOK bool
	}{
		{"emergency", SeverityEmergency, true},
		{"Emergency", SeverityEmergency, true},
		{" WARNING ", SeverityWarning, true},
		{"stable", SeverityStable, true},
		{"Monitor", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseSeverity(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseSeverity(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	s := questioningSession(t, symptom.Fever, "q1", "q2")
	s.CaretakerData = &CaretakerData{Age: "40"}
	_ = s.SubmitAnswer("yes")

	cp := s.Clone()
	cp.Questions[0].Text = "changed"
	cp.TriageAnswers[0].Answer = "changed"
	cp.CaretakerData.Age = "1"

	if s.Questions[0].Text != "q1" || s.TriageAnswers[0].Answer != "yes" || s.CaretakerData.Age != "40" {
		t.Error("mutating the clone changed the original")
	}
}
