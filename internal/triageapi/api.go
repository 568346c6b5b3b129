// Package triageapi exposes triage sessions and the care operations over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/backend"
	"github.com/linnemanlabs/medtriage/internal/care"
	"github.com/linnemanlabs/medtriage/internal/fault"
	"github.com/linnemanlabs/medtriage/internal/symptom"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

// SessionService defines the session operations the API needs.
type SessionService interface {
	Create(ctx context.Context) (*triage.Session, error)
	Get(ctx context.Context, id string) (*triage.Session, bool, error)
	Cancel(ctx context.Context, id string) error
	BeginEmergency(ctx context.Context, id string) (*triage.Session, error)
	BeginFromTranscript(ctx context.Context, id, transcript string) (*triage.Session, symptom.Tag, error)
	BeginCaretaker(ctx context.Context, id string) (*triage.Session, error)
	CommitCaretaker(ctx context.Context, id string, data triage.CaretakerData) (*triage.Session, error)
	SelectSymptom(ctx context.Context, id string, tag symptom.Tag) (*triage.Session, error)
	SubmitAnswer(ctx context.Context, id, answer string) (*triage.Session, error)
	Classify(ctx context.Context, id string) (*triage.Session, error)
}

// CareService defines the care operations the API needs.
type CareService interface {
	CheckHealth(ctx context.Context, v care.Vitals) (*care.HealthReport, error)
	FindHospitals(ctx context.Context, lat, lon float64) ([]care.Hospital, error)
	History(ctx context.Context) ([]care.HistoryRecord, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	sessions SessionService
	care     CareService
	metrics  *triage.Metrics
}

var validate = validator.New()

// New creates a new API handler. metrics may be nil.
func New(logger log.Logger, sessions SessionService, careSvc CareService, metrics *triage.Metrics) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if sessions == nil {
		panic(xerrors.New("session service is required"))
	}
	if careSvc == nil {
		panic(xerrors.New("care service is required"))
	}
	return &API{
		logger:   logger,
		sessions: sessions,
		care:     careSvc,
		metrics:  metrics,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.backendCallStats)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", a.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetSession)
				r.Delete("/", a.handleCancelSession)
				r.Post("/emergency", a.handleBeginEmergency)
				r.Post("/transcript", a.handleTranscript)
				r.Post("/caretaker", a.handleBeginCaretaker)
				r.Put("/caretaker", a.handleCommitCaretaker)
				r.Post("/symptom", a.handleSelectSymptom)
				r.Post("/answers", a.handleSubmitAnswer)
				r.Post("/classify", a.handleClassify)
			})
		})

		r.Post("/transcripts/classify", a.handleClassifyTranscript)
		r.Post("/health/check", a.handleCheckHealth)
		r.Get("/health/history", a.handleHealthHistory)
		r.Post("/hospitals", a.handleFindHospitals)
	})
}

// backendCallStats attaches per-request backend call stats and logs them
// once the handler returns.
func (a *API) backendCallStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := backend.NewReqCallStatsContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))

		stats, _ := backend.ReqCallStatsFromContext(ctx)
		calls, total, errs := stats.Snapshot()
		if calls == 0 {
			return
		}
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("medtriage.backend.calls", calls),
			attribute.Int("medtriage.backend.errors", errs),
		)
		log.FromContext(ctx).Info(ctx, "backend calls",
			"backend.calls", calls,
			"backend.errors", errs,
			"backend.total_duration", total.Seconds(),
		)
	})
}

type errorBody struct {
	Error   string       `json:"error"`
	Kind    fault.Kind   `json:"kind,omitempty"`
	Session *sessionView `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code. Unclassified errors are logged and
// reported as internal without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, sess *triage.Session) {
	status, body := a.errorResponse(r.Context(), err)
	if sess != nil {
		body.Session = newSessionView(sess)
	}
	writeJSON(w, status, body)
}

func (a *API) errorResponse(ctx context.Context, err error) (int, errorBody) {
	switch {
	case errors.Is(err, triage.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "session not found"}
	case errors.Is(err, triage.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: err.Error()}
	}

	switch kind := fault.KindOf(err); kind {
	case fault.KindValidation:
		return http.StatusBadRequest, errorBody{Error: err.Error(), Kind: kind}
	case fault.KindEmptyResult:
		return http.StatusNotFound, errorBody{Error: err.Error(), Kind: kind}
	case fault.KindNetwork:
		a.logger.Warn(ctx, "collaborator unavailable", "error", err)
		return http.StatusBadGateway, errorBody{Error: "upstream service unavailable", Kind: kind}
	}

	a.logger.Error(ctx, err, "request failed")
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Validation("decode_request", errors.New("invalid payload"))
	}
	return nil
}
