package backend

import (
	"context"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// ReqCallStats accumulates per-request backend call statistics.
type ReqCallStats struct {
	mu            sync.Mutex
	CallCount     int
	TotalDuration time.Duration
	ErrorCount    int
}

type callStatsKey struct{}

// CallObserver receives per-call metrics (wired by main for Prometheus).
type CallObserver interface {
	ObserveCall(ctx context.Context, op, route, outcome string, dur time.Duration)
}

// CallObserverFunc adapts a plain function to CallObserver.
type CallObserverFunc func(ctx context.Context, op, route, outcome string, dur time.Duration)

// ObserveCall implements CallObserver.
func (f CallObserverFunc) ObserveCall(ctx context.Context, op, route, outcome string, dur time.Duration) {
	f(ctx, op, route, outcome, dur)
}

// AddCall records a single backend call.
func (s *ReqCallStats) AddCall(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

// Snapshot returns the current totals.
func (s *ReqCallStats) Snapshot() (calls int, total time.Duration, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount, s.TotalDuration, s.ErrorCount
}

// NewReqCallStatsContext returns a new context with an empty ReqCallStats attached.
func NewReqCallStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, callStatsKey{}, &ReqCallStats{})
}

// ReqCallStatsFromContext extracts the ReqCallStats from the context, if present.
func ReqCallStatsFromContext(ctx context.Context) (*ReqCallStats, bool) {
	s, ok := ctx.Value(callStatsKey{}).(*ReqCallStats)
	return s, ok
}

func routePatternFromContext(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}
