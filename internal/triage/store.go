package triage

import (
	"context"

	"github.com/linnemanlabs/medtriage/internal/symptom"
)

// Store holds sessions between requests. Implementations must return copies
// so callers can mutate what they get without affecting stored state.
type Store interface {
	Get(ctx context.Context, id string) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Backend is the external triage service the flow delegates to.
type Backend interface {
	GetTriageQuestions(ctx context.Context, tag symptom.Tag, caretaker *CaretakerData) ([]Question, error)
	ClassifyEmergency(ctx context.Context, s *Session) (*Classification, error)
}

// Notifier is told about sessions that ended with an emergency severity.
type Notifier interface {
	Notify(ctx context.Context, s *Session) error
}
