package triage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/medtriage/internal/symptom"
)

// Metrics holds Prometheus metrics for the triage subsystem. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	SessionsCreated      prometheus.Counter
	SessionsCancelled    *prometheus.CounterVec
	SessionDuration      *prometheus.HistogramVec
	SessionAnswers       prometheus.Histogram
	TransitionsTotal     *prometheus.CounterVec
	QuestionFetchesTotal *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	TranscriptsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medtriage_sessions_created_total",
			Help: "Total triage sessions created.",
		}),
		SessionsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_sessions_cancelled_total",
			Help: "Total triage sessions cancelled, by state at cancellation.",
		}, []string{"state"}),
		SessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medtriage_session_duration_seconds",
			Help:    "Time from session creation to result display.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s .. ~43m
		}, []string{"severity", "caretaker"}),
		SessionAnswers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medtriage_session_answers",
			Help:    "Answers collected per classified session.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_session_transitions_total",
			Help: "Total session state transitions.",
		}, []string{"from", "to"}),
		QuestionFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_question_fetches_total",
			Help: "Total triage question fetches by outcome.",
		}, []string{"outcome"}),
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_classifications_total",
			Help: "Total classification attempts by severity, or failed.",
		}, []string{"severity"}),
		TranscriptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtriage_transcripts_total",
			Help: "Total voice transcripts classified, by symptom.",
		}, []string{"symptom"}),
	}

	reg.MustRegister(
		m.SessionsCreated,
		m.SessionsCancelled,
		m.SessionDuration,
		m.SessionAnswers,
		m.TransitionsTotal,
		m.QuestionFetchesTotal,
		m.ClassificationsTotal,
		m.TranscriptsTotal,
	)

	return m
}

// TranscriptClassified counts a transcript classified outside any session.
func (m *Metrics) TranscriptClassified(tag symptom.Tag) {
	m.transcriptClassified(tag)
}

func (m *Metrics) sessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) sessionCancelled(st State) {
	if m == nil {
		return
	}
	m.SessionsCancelled.WithLabelValues(string(st)).Inc()
}

func (m *Metrics) sessionCompleted(s *Session, at time.Time) {
	if m == nil {
		return
	}
	caretaker := "false"
	if s.IsCaretaker {
		caretaker = "true"
	}
	m.SessionDuration.WithLabelValues(string(s.Severity), caretaker).Observe(at.Sub(s.CreatedAt).Seconds())
	m.SessionAnswers.Observe(float64(len(s.TriageAnswers)))
}

func (m *Metrics) transition(from, to State) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) questionFetch(outcome string) {
	if m == nil {
		return
	}
	m.QuestionFetchesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) classification(severity string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(severity).Inc()
}

func (m *Metrics) transcriptClassified(tag symptom.Tag) {
	if m == nil {
		return
	}
	m.TranscriptsTotal.WithLabelValues(string(tag)).Inc()
}
