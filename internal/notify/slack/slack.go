// Package slack posts emergency triage outcomes to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

const (
	maxAnswerLen = 200
	maxAnswers   = 10

	// Slack rejects section text longer than 3000 characters.
	maxSectionLen = 3000
	httpTimeout  = 10 * time.Second
)

// Notifier sends emergency sessions to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Notify posts a finished session to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, s *triage.Session) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(s))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "session_id", s.ID, "severity", s.Severity)
	return nil
}

func buildMessage(s *triage.Session) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(s),
			{"type": "divider"},
			fieldsBlock(s),
			{"type": "divider"},
			answersBlock(s),
			instructionsBlock(s),
			{"type": "divider"},
			contextBlock(s),
		},
	}
}

func headerBlock(s *triage.Session) map[string]any {
	text := fmt.Sprintf("%s %s: %s", severityEmoji(s.Severity), strings.ToUpper(string(s.Severity)), symptomLabel(s))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(s *triage.Session) map[string]any {
	reporter := "Patient"
	if s.IsCaretaker {
		reporter = "Caretaker"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Symptom:* %s", symptomLabel(s)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reported by:* %s", reporter),
		},
	}

	if cd := s.CaretakerData; cd != nil {
		if cd.Age != "" {
			fields = append(fields, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Age:* %s", cd.Age),
			})
		}
		if cd.Conscious != "" {
			fields = append(fields, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Conscious:* %s", cd.Conscious),
			})
		}
	}

	fields = append(fields, map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf("*Time to result:* %.0fs", s.UpdatedAt.Sub(s.CreatedAt).Seconds()),
	})

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func answersBlock(s *triage.Session) map[string]any {
	var b strings.Builder
	b.WriteString("*Answers*\n\n")
	if len(s.TriageAnswers) == 0 {
		b.WriteString("_No questions were answered._")
	}
	for i, a := range s.TriageAnswers {
		if i == maxAnswers {
			fmt.Fprintf(&b, "_…and %d more_\n", len(s.TriageAnswers)-maxAnswers)
			break
		}
		fmt.Fprintf(&b, "• %s: *%s*\n", truncate(a.Question, maxAnswerLen), truncate(a.Answer, maxAnswerLen))
	}

	return sectionBlock(b.String())
}

func instructionsBlock(s *triage.Session) map[string]any {
	var b strings.Builder
	b.WriteString("*Instructions given*\n\n")
	if len(s.Instructions) == 0 {
		b.WriteString("_None._")
	}
	for i, in := range s.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, in)
	}

	return sectionBlock(b.String())
}

func sectionBlock(text string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": truncate(text, maxSectionLen),
		},
	}
}

func contextBlock(s *triage.Session) map[string]any {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = s.CreatedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("medtriage • session %s • %s", s.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func symptomLabel(s *triage.Session) string {
	if s.Symptom == "" {
		return "unspecified"
	}
	return strings.ReplaceAll(string(s.Symptom), "_", " ")
}

func severityEmoji(severity triage.Severity) string {
	switch severity {
	case triage.SeverityEmergency:
		return "\U0001f534" // red circle
	case triage.SeverityWarning:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// truncate shortens s to at most limit runes, cutting on a rune boundary.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
