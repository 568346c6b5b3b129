// Package backend is the HTTP client for the triage backend that owns the
// question sets, the severity classifier and the vitals history.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/fault"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 1 << 20

// Client talks JSON to the triage backend. Every response carries a success
// flag; anything other than a successful, decodable 2xx is a network failure.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tracer     trace.Tracer
	observer   CallObserver
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver sets the per-call metrics observer.
func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithTracerProvider sets the provider client spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

const tracerName = "github.com/linnemanlabs/medtriage/internal/backend"

// New creates a client for the backend at baseURL. A zero timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url %q has no host", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the part every backend response shares.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (e *envelope) env() *envelope { return e }

type enveloped interface {
	env() *envelope
}

// call sends in (when non-nil) to path and decodes the response into out.
func (c *Client) call(ctx context.Context, op, method, path string, in any, out enveloped) (err error) {
	start := time.Now()
	// The otelhttp transport records the client span as a child of this one.
	ctx, span := c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("medtriage.backend.operation", op),
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer func() {
		dur := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.observe(ctx, op, dur, err)
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Network(op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fault.Network(op, fmt.Errorf("read response: %w", err))
	}

	decodeErr := json.Unmarshal(raw, out)
	env := out.env()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.Error != "" {
			return fault.Network(op, fmt.Errorf("status %d: %s", resp.StatusCode, env.Error))
		}
		return fault.Network(op, fmt.Errorf("status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return fault.Network(op, fmt.Errorf("decode response: %w", decodeErr))
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return fault.Network(op, errors.New(msg))
	}
	return nil
}

func (c *Client) observe(ctx context.Context, op string, dur time.Duration, err error) {
	if s, ok := ReqCallStatsFromContext(ctx); ok {
		s.AddCall(dur, err)
	}

	outcome := "ok"
	if k := fault.KindOf(err); k != "" {
		outcome = string(k)
	} else if err != nil {
		outcome = "error"
	}

	if c.observer != nil {
		c.observer.ObserveCall(ctx, op, routePatternFromContext(ctx), outcome, dur)
	}

	L := log.FromContext(ctx)
	fields := []any{
		"backend.operation", op,
		"backend.duration", dur.Seconds(),
		"backend.outcome", outcome,
	}
	if err != nil {
		L.Error(ctx, err, "backend call failed", fields...)
		return
	}
	L.Info(ctx, "backend call", fields...)
}
