package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/medtriage/internal/symptom"
)

// Service is the business boundary for triage sessions. It applies the
// session transitions, calls the backend in between and persists the result.
type Service struct {
	store    Store
	backend  Backend
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
	locks    sessionLocks
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, backend Backend, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		backend:  backend,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create starts a new idle session.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	sess := NewSession(ulid.Make().String(), s.now())
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("put session: %w", err)
	}
	s.metrics.sessionCreated()
	s.logger.Info(ctx, "session created", "session_id", sess.ID)
	return sess, nil
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, id string) (*Session, bool, error) {
	return s.store.Get(ctx, id)
}

// Cancel abandons a session.
func (s *Service) Cancel(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.metrics.sessionCancelled(sess.State)
	s.logger.Info(ctx, "session cancelled", "session_id", id, "state", sess.State)
	return nil
}

// BeginEmergency handles an explicit emergency action.
func (s *Service) BeginEmergency(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(_ context.Context, sess *Session) error {
		return sess.BeginEmergency()
	})
}

// BeginFromTranscript classifies a voice transcript and, when it names a
// known symptom, starts the flow with that symptom selected.
func (s *Service) BeginFromTranscript(ctx context.Context, id, transcript string) (*Session, symptom.Tag, error) {
	var tag symptom.Tag
	sess, err := s.update(ctx, id, func(ctx context.Context, sess *Session) error {
		var err error
		tag, err = sess.BeginFromTranscript(transcript)
		if err != nil {
			return err
		}
		s.metrics.transcriptClassified(tag)
		if !tag.Known() {
			return nil
		}
		return s.loadQuestions(ctx, sess)
	})
	return sess, tag, err
}

// BeginCaretaker enters caretaker setup.
func (s *Service) BeginCaretaker(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(_ context.Context, sess *Session) error {
		return sess.BeginCaretaker()
	})
}

// CommitCaretaker stores the caretaker context and moves on to symptom selection.
func (s *Service) CommitCaretaker(ctx context.Context, id string, data CaretakerData) (*Session, error) {
	return s.update(ctx, id, func(_ context.Context, sess *Session) error {
		return sess.CommitCaretaker(data)
	})
}

// SelectSymptom sets the symptom and fetches its questions. A failed or empty
// fetch goes straight to classification.
func (s *Service) SelectSymptom(ctx context.Context, id string, tag symptom.Tag) (*Session, error) {
	return s.update(ctx, id, func(ctx context.Context, sess *Session) error {
		if err := sess.SelectSymptom(tag); err != nil {
			return err
		}
		return s.loadQuestions(ctx, sess)
	})
}

// SubmitAnswer records an answer. After the last answer classification is
// requested; if that fails the session stays in classifying with its error
// set and the returned error is still nil, since the answer was accepted.
func (s *Service) SubmitAnswer(ctx context.Context, id, answer string) (*Session, error) {
	return s.update(ctx, id, func(ctx context.Context, sess *Session) error {
		if err := sess.SubmitAnswer(answer); err != nil {
			return err
		}
		if sess.State == StateClassifying {
			_ = s.classify(ctx, sess)
		}
		return nil
	})
}

// Classify retries classification for a session stuck in classifying. The
// updated session is returned together with the classification error, if any.
func (s *Service) Classify(ctx context.Context, id string) (*Session, error) {
	var classifyErr error
	sess, err := s.update(ctx, id, func(ctx context.Context, sess *Session) error {
		if err := sess.expect("classify", StateClassifying); err != nil {
			return err
		}
		classifyErr = s.classify(ctx, sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, classifyErr
}

// update runs fn on the stored session under the session's lock and persists
// the result. Nothing is persisted when fn fails.
func (s *Service) update(ctx context.Context, id string, fn func(context.Context, *Session) error) (*Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	from := sess.State
	if err := fn(ctx, sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()

	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("put session: %w", err)
	}

	if sess.State != from {
		s.metrics.transition(from, sess.State)
		s.logger.Info(ctx, "session transition",
			"session_id", sess.ID,
			"from", from,
			"to", sess.State,
			"symptom", sess.Symptom,
		)
		if sess.State == StateResultDisplayed {
			s.metrics.sessionCompleted(sess, sess.UpdatedAt)
			if sess.Severity == SeverityEmergency && s.notifier != nil {
				go s.notify(context.WithoutCancel(ctx), sess.Clone())
			}
		}
	}
	return sess, nil
}

func (s *Service) loadQuestions(ctx context.Context, sess *Session) error {
	L := s.logger.With("session_id", sess.ID, "symptom", sess.Symptom)

	qs, err := s.backend.GetTriageQuestions(ctx, sess.Symptom, sess.CaretakerData)
	if err != nil {
		L.Warn(ctx, "question fetch failed, continuing to classification", "error", err)
		s.metrics.questionFetch("failed")
		if err := sess.QuestionsFailed(); err != nil {
			return err
		}
	} else {
		if len(qs) == 0 {
			s.metrics.questionFetch("empty")
		} else {
			s.metrics.questionFetch("ok")
		}
		if err := sess.ReceiveQuestions(qs); err != nil {
			return err
		}
	}

	if sess.State == StateClassifying {
		_ = s.classify(ctx, sess)
	}
	return nil
}

// classify asks the backend for a verdict. Failures are recorded on the
// session and returned; they never change its state.
func (s *Service) classify(ctx context.Context, sess *Session) error {
	L := s.logger.With("session_id", sess.ID, "symptom", sess.Symptom)

	c, err := s.backend.ClassifyEmergency(ctx, sess.Clone())
	if err != nil {
		L.Error(ctx, err, "classification failed", "answers", len(sess.TriageAnswers))
		s.metrics.classification("failed")
		if terr := sess.ClassificationFailed(err); terr != nil {
			return terr
		}
		return err
	}

	if err := sess.ReceiveClassification(*c); err != nil {
		return err
	}
	s.metrics.classification(string(c.Severity))
	L.Info(ctx, "session classified",
		"severity", c.Severity,
		"answers", len(sess.TriageAnswers),
		"is_caretaker", sess.IsCaretaker,
	)
	return nil
}

func (s *Service) notify(ctx context.Context, sess *Session) {
	if err := s.notifier.Notify(ctx, sess); err != nil {
		s.logger.Error(ctx, err, "emergency notification failed", "session_id", sess.ID)
	}
}

// sessionLocks serializes operations on one session so a quick double submit
// cannot interleave two read-modify-write cycles.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sessionLock)
	}
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
