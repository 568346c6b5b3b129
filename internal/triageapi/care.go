package triageapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/care"
	"github.com/linnemanlabs/medtriage/internal/fault"
)

func (a *API) handleCheckHealth(w http.ResponseWriter, r *http.Request) {
	var v care.Vitals
	if err := decodeJSON(r, &v); err != nil {
		a.writeError(w, r, err, nil)
		return
	}

	report, err := a.care.CheckHealth(r.Context(), v)
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("medtriage.health.status", report.Status))
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleHealthHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.care.History(r.Context())
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

type hospitalsRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

func (a *API) handleFindHospitals(w http.ResponseWriter, r *http.Request) {
	var req hospitalsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		a.writeError(w, r, fault.Validation("find_hospitals", err), nil)
		return
	}

	hospitals, err := a.care.FindHospitals(r.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		a.writeError(w, r, err, nil)
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("medtriage.hospitals.count", len(hospitals)))
	writeJSON(w, http.StatusOK, map[string]any{"hospitals": hospitals})
}
