// Package notify delivers structured intake summaries to the procurement
// channel. Delivery is at-least-once and best-effort: failures are logged
// and counted, never surfaced to the requester.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/clubops/pobot/internal/config"
	"github.com/clubops/pobot/internal/metrics"
)

// QuotePayload is the snapshot dispatched when a quote arrives.
type QuotePayload struct {
	CostItem       string
	Account        string
	Department     string
	Tracking       string
	FinanceRef     string
	AttachmentName string
	AttachmentURI  string
}

// CompletionPayload is the snapshot dispatched when the flow completes.
type CompletionPayload struct {
	Sender  string
	Answer1 string
	Answer2 string
}

// Dispatcher is what the flow engine calls at the two trigger points.
type Dispatcher interface {
	QuoteReceived(p QuotePayload)
	FlowCompleted(p CompletionPayload)
}

type mailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Service posts to a Google Chat incoming webhook and optionally mails the
// same summary to a procurement recipient list.
type Service struct {
	cfg        config.NotifyConfig
	httpClient *http.Client
	sendMail   mailFunc
}

func NewService(cfg config.NotifyConfig) *Service {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultNotifyTimeoutMs) * time.Millisecond
	}
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sendMail:   smtp.SendMail,
	}
}

func (s *Service) QuoteReceived(p QuotePayload) {
	go s.deliver("quote", "New PO quote received", formatQuote(p))
}

func (s *Service) FlowCompleted(p CompletionPayload) {
	go s.deliver("completion", "PO request completed", formatCompletion(p))
}

func (s *Service) deliver(trigger, subject, body string) {
	metrics.IncNotification(trigger, s.send(trigger, subject, body))
}

// send attempts every configured destination and reports the outcome:
// "ok" when at least one leg delivered, "failed" when all legs errored,
// "skipped" when no destination is configured at all.
func (s *Service) send(trigger, subject, body string) string {
	if s.cfg.WebhookURL == "" && !s.cfg.SMTP.Enabled() {
		log.Printf("[notify] no destination configured, skipping %s notification", trigger)
		return "skipped"
	}

	delivered := false

	if s.cfg.WebhookURL != "" {
		if err := s.postWebhook(body); err != nil {
			log.Printf("[notify] webhook delivery failed (%s): %v", trigger, err)
		} else {
			delivered = true
		}
	}

	if s.cfg.SMTP.Enabled() {
		if err := s.mail(subject, body); err != nil {
			log.Printf("[notify] mail delivery failed (%s): %v", trigger, err)
		} else {
			delivered = true
		}
	}

	if delivered {
		return "ok"
	}
	return "failed"
}

func (s *Service) postWebhook(text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	retries := s.cfg.Retries
	if retries <= 0 {
		retries = config.DefaultNotifyRetries
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = s.postOnce(payload)
		if lastErr == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt*attempt) * 100 * time.Millisecond)
	}
	return lastErr
}

func (s *Service) postOnce(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *Service) mail(subject, body string) error {
	cfg := s.cfg.SMTP

	port := cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, port)

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		cfg.From, strings.Join(cfg.To, ", "), subject, body)

	return s.sendMail(addr, auth, cfg.From, cfg.To, []byte(msg))
}

func formatQuote(p QuotePayload) string {
	var sb strings.Builder
	sb.WriteString("📦 New PO quote received\n")
	fmt.Fprintf(&sb, "Cost item: %s\n", p.CostItem)
	fmt.Fprintf(&sb, "Department: %s\n", p.Department)
	fmt.Fprintf(&sb, "Account: %s\n", p.Account)
	if p.Tracking != "" {
		fmt.Fprintf(&sb, "Tracking: %s\n", p.Tracking)
	}
	if p.FinanceRef != "" {
		fmt.Fprintf(&sb, "Finance ref: %s\n", p.FinanceRef)
	}
	if p.AttachmentName != "" {
		fmt.Fprintf(&sb, "Quote: %s", p.AttachmentName)
		if p.AttachmentURI != "" {
			fmt.Fprintf(&sb, " (%s)", p.AttachmentURI)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCompletion(p CompletionPayload) string {
	return fmt.Sprintf("✅ PO request completed\nRequester: %s\nBudgeted elsewhere: %s\nBoard approved: %s",
		p.Sender, p.Answer1, p.Answer2)
}
