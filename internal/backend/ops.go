package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/linnemanlabs/medtriage/internal/care"
	"github.com/linnemanlabs/medtriage/internal/fault"
	"github.com/linnemanlabs/medtriage/internal/symptom"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

type questionsRequest struct {
	Symptom   symptom.Tag          `json:"symptom"`
	Age       string               `json:"age,omitempty"`
	Conscious triage.Consciousness `json:"conscious,omitempty"`
}

type questionsResponse struct {
	envelope
	Questions []triage.Question `json:"questions"`
}

// GetTriageQuestions fetches the ordered question set for a symptom. An empty
// set is a valid answer.
func (c *Client) GetTriageQuestions(ctx context.Context, tag symptom.Tag, caretaker *triage.CaretakerData) ([]triage.Question, error) {
	in := questionsRequest{Symptom: tag}
	if caretaker != nil {
		in.Age = caretaker.Age
		in.Conscious = caretaker.Conscious
	}

	var out questionsResponse
	if err := c.call(ctx, "get_triage_questions", http.MethodPost, "/get_triage_questions", in, &out); err != nil {
		return nil, err
	}

	qs := make([]triage.Question, 0, len(out.Questions))
	for _, q := range out.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// classifyRequest mirrors the session shape the backend classifier expects.
type classifyRequest struct {
	Symptom       symptom.Tag           `json:"symptom"`
	IsCaretaker   bool                  `json:"isCaretaker"`
	CaretakerData *triage.CaretakerData `json:"caretakerData,omitempty"`
	TriageAnswers []triage.Answer       `json:"triageAnswers"`
	Transcript    string                `json:"transcript,omitempty"`
}

type classifyResponse struct {
	envelope
	Severity     string   `json:"severity"`
	Instructions []string `json:"instructions"`
}

// ClassifyEmergency sends the collected answers and returns the verdict.
// Severity values outside the known vocabulary are an EmptyResult failure.
func (c *Client) ClassifyEmergency(ctx context.Context, s *triage.Session) (*triage.Classification, error) {
	in := classifyRequest{
		Symptom:       s.Symptom,
		IsCaretaker:   s.IsCaretaker,
		CaretakerData: s.CaretakerData,
		TriageAnswers: s.TriageAnswers,
		Transcript:    s.Transcript,
	}
	if in.TriageAnswers == nil {
		in.TriageAnswers = []triage.Answer{}
	}

	var out classifyResponse
	if err := c.call(ctx, "classify_emergency", http.MethodPost, "/classify_emergency", in, &out); err != nil {
		return nil, err
	}

	sev, ok := triage.ParseSeverity(out.Severity)
	if !ok {
		return nil, fault.Empty("classify_emergency", fmt.Sprintf("unrecognised severity %q", out.Severity))
	}
	return &triage.Classification{Severity: sev, Instructions: out.Instructions}, nil
}

type healthResponse struct {
	envelope
	care.HealthReport
}

// CheckHealth submits vitals for assessment.
func (c *Client) CheckHealth(ctx context.Context, v care.Vitals) (*care.HealthReport, error) {
	var out healthResponse
	if err := c.call(ctx, "check_health", http.MethodPost, "/check_health", v, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		return nil, fault.Empty("check_health", "response has no status")
	}
	report := out.HealthReport
	return &report, nil
}

type hospitalsRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type hospitalsResponse struct {
	envelope
	Hospitals []care.Hospital `json:"hospitals"`
}

// FindHospitals asks the backend for hospitals near lat/lon.
func (c *Client) FindHospitals(ctx context.Context, lat, lon float64) ([]care.Hospital, error) {
	var out hospitalsResponse
	in := hospitalsRequest{Latitude: lat, Longitude: lon}
	if err := c.call(ctx, "find_hospitals", http.MethodPost, "/find_hospitals", in, &out); err != nil {
		return nil, err
	}
	return out.Hospitals, nil
}

type historyResponse struct {
	envelope
	History []care.HistoryRecord `json:"history"`
}

// GetHealthHistory returns the most recent health checks.
func (c *Client) GetHealthHistory(ctx context.Context) ([]care.HistoryRecord, error) {
	var out historyResponse
	if err := c.call(ctx, "health_history", http.MethodGet, "/health_history", nil, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		return []care.HistoryRecord{}, nil
	}
	return out.History, nil
}

var (
	_ triage.Backend      = (*Client)(nil)
	_ care.HealthChecker  = (*Client)(nil)
	_ care.HospitalFinder = (*Client)(nil)
)
