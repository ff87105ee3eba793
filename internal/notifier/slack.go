package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/skillradar/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends job alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter // spaces out consecutive messages
}

// NewSlackNotifier returns a notifier that posts each job to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// Notify sends each job as a separate Slack message using Block Kit.
// Returns an error only if ALL messages fail. Individual failures are logged.
func (s *SlackNotifier) Notify(alerts model.Batch) error {
	if len(alerts) == 0 {
		return nil
	}

	failures := 0
	for _, j := range alerts {
		if err := s.limiter.Wait(context.Background()); err != nil {
			return fmt.Errorf("waiting for slack rate limiter: %w", err)
		}
		if err := s.sendMessage(j); err != nil {
			s.logger.Error("slack notification failed", "company", j.Company, "title", j.Title, "error", err)
			failures++
		}
	}

	sent := len(alerts) - failures
	if failures == len(alerts) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", sent, "failed", failures)
	return nil
}

// maxAttempts bounds the posts per message; only a 429 earns another try.
const maxAttempts = 2

func (s *SlackNotifier) sendMessage(j model.JobRecord) error {
	body, err := json.Marshal(buildPayload(j))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	for attempt := 1; ; attempt++ {
		status, wait, err := s.post(body)
		if err != nil {
			return fmt.Errorf("post to slack (attempt %d): %w", attempt, err)
		}
		switch {
		case status == http.StatusOK:
			s.logger.Info("slack message sent", "company", j.Company, "title", j.Title, "attempt", attempt)
			return nil
		case status == http.StatusTooManyRequests && attempt < maxAttempts:
			s.logger.Warn("slack rate limited, retrying", "retry_after", wait.String())
			time.Sleep(wait)
		default:
			return fmt.Errorf("slack returned %d (attempt %d)", status, attempt)
		}
	}
}

// post sends one webhook request and reports the status and, for a 429, how
// long Slack asked us to wait (at least a second).
func (s *SlackNotifier) post(body []byte) (int, time.Duration, error) {
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	wait := time.Second
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		wait = time.Duration(secs) * time.Second
	}
	return resp.StatusCode, wait, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a dummy job alert to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	testJob := model.JobRecord{
		Title:      "Test Notification: Integration Verified",
		Company:    "SkillRadar Test",
		Location:   "Everywhere",
		Skills:     "go,sql,testing",
		Experience: "0-1 Years",
		Summary:    "If you can read this, alerts are wired up.",
		Cluster:    0,
	}
	return n.Notify(model.Batch{testJob})
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func mrkdwn(text string) slackText {
	return slackText{Type: "mrkdwn", Text: text}
}

// labelled renders a bold label above its value, the layout Slack uses for
// section fields.
func labelled(label, value string) slackText {
	return mrkdwn("*" + label + ":*\n" + value)
}

func buildPayload(j model.JobRecord) slackPayload {
	p := slackPayload{}
	add := func(b slackBlock) { p.Blocks = append(p.Blocks, b) }

	add(slackBlock{Type: "header", Text: &slackText{Type: "plain_text", Text: "🔔 " + j.Company + ": " + j.Title}})
	add(slackBlock{Type: "section", Fields: []slackText{
		labelled("Company", j.Company),
		labelled("Location", orDefault(j.Location, "N/A")),
	}})
	add(slackBlock{Type: "section", Fields: []slackText{
		labelled("Cluster", strconv.Itoa(j.Cluster)),
		labelled("Experience", orDefault(j.Experience, "N/A")),
	}})
	skills := mrkdwn("*Skills:* " + orDefault(j.Skills, "none listed"))
	add(slackBlock{Type: "section", Text: &skills})
	if strings.TrimSpace(j.Summary) != "" {
		add(slackBlock{Type: "context", Elements: []slackText{mrkdwn(j.Summary)}})
	}
	add(slackBlock{Type: "divider"})
	return p
}
