package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/medtriage/internal/symptom"
	"github.com/linnemanlabs/medtriage/internal/triage"
	"github.com/linnemanlabs/medtriage/internal/triage/redisstore"
)

func openStore(t *testing.T, ttl time.Duration) *redisstore.Store {
	t.Helper()
	addr := os.Getenv("MEDTRIAGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MEDTRIAGE_TEST_REDIS_ADDR not set, skipping integration test")
	}
	s, err := redisstore.New(context.Background(), addr, "", 0, ttl)
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t, time.Minute)
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond).UTC()
	sess := triage.NewSession(ulid.Make().String(), now)
	sess.State = triage.StateQuestioning
	sess.Symptom = symptom.ChestPain
	sess.IsCaretaker = true
	sess.CaretakerData = &triage.CaretakerData{Age: "67", Conscious: triage.Conscious}
	sess.Questions = []triage.Question{{Text: "Is pain radiating to arm?"}, {Text: "Are you sweating?"}}
	sess.QuestionIndex = 1
	sess.TriageAnswers = []triage.Answer{{Question: "Is pain radiating to arm?", Answer: "yes"}}

	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx, sess.ID) })

	got, ok, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}
	if got.State != triage.StateQuestioning {
		t.Errorf("State = %q, want %q", got.State, triage.StateQuestioning)
	}
	if got.Symptom != symptom.ChestPain {
		t.Errorf("Symptom = %q, want %q", got.Symptom, symptom.ChestPain)
	}
	if got.CaretakerData == nil || got.CaretakerData.Age != "67" {
		t.Errorf("CaretakerData = %+v, want age 67", got.CaretakerData)
	}
	if got.QuestionIndex != 1 || len(got.Questions) != 2 {
		t.Errorf("cursor = %d/%d, want 1/2", got.QuestionIndex, len(got.Questions))
	}
	if len(got.TriageAnswers) != 1 || got.TriageAnswers[0].Answer != "yes" {
		t.Errorf("TriageAnswers = %+v", got.TriageAnswers)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t, time.Minute)

	_, ok, err := s.Get(context.Background(), "missing-"+ulid.Make().String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing session")
	}
}

func TestDelete(t *testing.T) {
	s := openStore(t, time.Minute)
	ctx := context.Background()

	sess := triage.NewSession(ulid.Make().String(), time.Now())
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, sess.ID); ok {
		t.Fatal("expected session to be gone after Delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	s := openStore(t, time.Second)
	ctx := context.Background()

	sess := triage.NewSession(ulid.Make().String(), time.Now())
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, sess.ID); ok {
		t.Fatal("expected session to expire after TTL")
	}
}
