// Package alert sends operator notifications for failures that need a human.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type Notifier interface {
	// Failed alerts once per key until the key is resolved.
	Failed(ctx context.Context, key, text string)
	// Resolved alerts only if key is currently failing.
	Resolved(ctx context.Context, key, text string)
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Failed(context.Context, string, string)   {}
func (Nop) Resolved(context.Context, string, string) {}

type Slack struct {
	mu      sync.Mutex
	failing map[string]struct{}

	http    *resty.Client
	webhook string
	prefix  string
	logger  *slog.Logger
}

type SlackOpts struct {
	WebhookURL string
	// Prefix is prepended to every message, e.g. the bot name.
	Prefix string
	Logger *slog.Logger
}

var _ Notifier = &Slack{}

func NewSlack(opts SlackOpts) *Slack {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Slack{
		failing: make(map[string]struct{}),
		http: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetHeader("Content-Type", "application/json"),
		webhook: opts.WebhookURL,
		prefix:  opts.Prefix,
		logger:  opts.Logger,
	}
}

// New returns a Slack notifier, or Nop when webhookURL is empty.
func New(webhookURL, prefix string, logger *slog.Logger) Notifier {
	if webhookURL == "" {
		return Nop{}
	}
	return NewSlack(SlackOpts{WebhookURL: webhookURL, Prefix: prefix, Logger: logger})
}

func (s *Slack) Failed(ctx context.Context, key, text string) {
	s.mu.Lock()
	_, seen := s.failing[key]
	s.failing[key] = struct{}{}
	s.mu.Unlock()
	if seen {
		return
	}
	s.post(ctx, ":rotating_light: "+text)
}

func (s *Slack) Resolved(ctx context.Context, key, text string) {
	s.mu.Lock()
	_, seen := s.failing[key]
	delete(s.failing, key)
	s.mu.Unlock()
	if !seen {
		return
	}
	s.post(ctx, ":white_check_mark: "+text)
}

// post never fails the caller; a lost alert is only logged.
func (s *Slack) post(ctx context.Context, text string) {
	if s.prefix != "" {
		text = fmt.Sprintf("[%s] %s", s.prefix, text)
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(s.webhook)
	if err != nil {
		s.logger.Error("failed to send slack alert", "error", err)
		return
	}
	if resp.IsError() {
		s.logger.Error("slack rejected alert", "status", resp.StatusCode(), "body", resp.String())
	}
}
