// Package redisstore provides a Redis implementation of triage.Store so
// sessions survive hopping between replicas. Values expire; nothing here is
// meant to outlive the session TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medtriage/internal/triage/redisstore")

const keyPrefix = "medtriage:session:"

// Store keeps sessions as JSON values with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func key(id string) string { return keyPrefix + id }

// Get retrieves a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Session, bool, error) {
	ctx, span := startSpan(ctx, "redisstore.Get", "GET")
	defer span.End()

	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		recordErr(span, err)
		return nil, false, fmt.Errorf("get %s: %w", id, err)
	}

	var sess triage.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		recordErr(span, err)
		return nil, false, fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return &sess, true, nil
}

// Put stores the session and refreshes its TTL.
func (s *Store) Put(ctx context.Context, sess *triage.Session) error {
	ctx, span := startSpan(ctx, "redisstore.Put", "SET")
	defer span.End()

	raw, err := json.Marshal(sess)
	if err != nil {
		recordErr(span, err)
		return fmt.Errorf("marshal %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, key(sess.ID), raw, s.ttl).Err(); err != nil {
		recordErr(span, err)
		return fmt.Errorf("set %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "redisstore.Delete", "DEL")
	defer span.End()

	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		recordErr(span, err)
		return fmt.Errorf("del %s: %w", id, err)
	}
	return nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation.name", op),
	))
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
