package triageapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/fault"
	"github.com/linnemanlabs/medtriage/internal/symptom"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

// sessionView is a session plus the question the client should show next.
type sessionView struct {
	*triage.Session
	CurrentQuestion *triage.Question `json:"current_question,omitempty"`
	DetectedSymptom symptom.Tag      `json:"detected_symptom,omitempty"`
}

func newSessionView(s *triage.Session) *sessionView {
	v := &sessionView{Session: s}
	if q, ok := s.CurrentQuestion(); ok {
		v.CurrentQuestion = &q
	}
	return v
}

func annotate(r *http.Request, s *triage.Session) {
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medtriage.session.id", chi.URLParam(r, "id")))
	if s != nil {
		span.SetAttributes(attribute.String("medtriage.session.state", string(s.State)))
	}
}

func (a *API) respondSession(w http.ResponseWriter, r *http.Request, s *triage.Session, err error) {
	annotate(r, s)
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Create(r.Context())
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("medtriage.session.id", s.ID))
	w.Header().Set("Location", "/api/v1/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, newSessionView(s))
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok, err := a.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && !ok {
		err = triage.ErrNotFound
	}
	a.respondSession(w, r, s, err)
}

func (a *API) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	annotate(r, nil)
	if err := a.sessions.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBeginEmergency(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.BeginEmergency(r.Context(), chi.URLParam(r, "id"))
	a.respondSession(w, r, s, err)
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

func (a *API) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}

	s, tag, err := a.sessions.BeginFromTranscript(r.Context(), chi.URLParam(r, "id"), req.Transcript)
	annotate(r, s)
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("medtriage.symptom", string(tag)))

	v := newSessionView(s)
	v.DetectedSymptom = tag
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleBeginCaretaker(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.BeginCaretaker(r.Context(), chi.URLParam(r, "id"))
	a.respondSession(w, r, s, err)
}

func (a *API) handleCommitCaretaker(w http.ResponseWriter, r *http.Request) {
	var data triage.CaretakerData
	if err := decodeJSON(r, &data); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	s, err := a.sessions.CommitCaretaker(r.Context(), chi.URLParam(r, "id"), data)
	a.respondSession(w, r, s, err)
}

type symptomRequest struct {
	Symptom string `json:"symptom" validate:"required"`
}

func (a *API) handleSelectSymptom(w http.ResponseWriter, r *http.Request) {
	var req symptomRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		a.writeError(w, r, fault.Validation("select_symptom", err), nil)
		return
	}

	// Unknown tags pass through so the session rejects them as a validation failure.
	tag, _ := symptom.Parse(req.Symptom)
	s, err := a.sessions.SelectSymptom(r.Context(), chi.URLParam(r, "id"), tag)
	a.respondSession(w, r, s, err)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (a *API) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	s, err := a.sessions.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req.Answer)
	a.respondSession(w, r, s, err)
}

// handleClassify retries classification. A collaborator failure still returns
// the session so the client can show its error and offer another retry.
func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Classify(r.Context(), chi.URLParam(r, "id"))
	annotate(r, s)
	if err != nil {
		a.writeError(w, r, err, s)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (a *API) handleClassifyTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}

	tag := symptom.Classify(req.Transcript)
	a.metrics.TranscriptClassified(tag)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("medtriage.symptom", string(tag)))

	writeJSON(w, http.StatusOK, map[string]any{"symptom": tag})
}
