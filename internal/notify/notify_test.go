package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clubops/pobot/internal/config"
)

func TestPostWebhookSendsChatPayload(t *testing.T) {
	var mu sync.Mutex
	var got map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
	}))
	defer srv.Close()

	s := NewService(config.NotifyConfig{WebhookURL: srv.URL, Retries: 1, TimeoutMs: 2000})
	if err := s.postWebhook("hello procurement"); err != nil {
		t.Fatalf("postWebhook: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got["text"] != "hello procurement" {
		t.Errorf("posted text = %q", got["text"])
	}
}

func TestPostWebhookRetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	s := NewService(config.NotifyConfig{WebhookURL: srv.URL, Retries: 3, TimeoutMs: 2000})
	if err := s.postWebhook("retry me"); err != nil {
		t.Fatalf("postWebhook after retries: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPostWebhookGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService(config.NotifyConfig{WebhookURL: srv.URL, Retries: 2, TimeoutMs: 2000})
	if err := s.postWebhook("doomed"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestMailUsesConfiguredRecipients(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	s := NewService(config.NotifyConfig{
		SMTP: config.SMTPConfig{
			Host: "mail.example.com",
			Port: 2525,
			From: "bot@example.com",
			To:   []string{"procurement@example.com", "finance@example.com"},
		},
	})
	s.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	if err := s.mail("PO request completed", "body"); err != nil {
		t.Fatalf("mail: %v", err)
	}
	if gotAddr != "mail.example.com:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 2 {
		t.Errorf("from=%q to=%v", gotFrom, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: PO request completed") {
		t.Errorf("message missing subject: %q", gotMsg)
	}
}

func TestQuoteReceivedDelivers(t *testing.T) {
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Training Equipment") {
			t.Errorf("payload missing cost item: %s", body)
		}
		done <- struct{}{}
	}))
	defer srv.Close()

	s := NewService(config.NotifyConfig{WebhookURL: srv.URL, Retries: 1, TimeoutMs: 2000})
	s.QuoteReceived(QuotePayload{
		CostItem:       "Training Equipment",
		Account:        "6001",
		Department:     "Sports",
		AttachmentName: "quote.pdf",
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestSendReportsOutcomePerConfiguration(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer okSrv.Close()
	failSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failSrv.Close()

	// No destination at all: skipped, not failed.
	s := NewService(config.NotifyConfig{})
	if got := s.send("quote", "subj", "body"); got != "skipped" {
		t.Errorf("unconfigured send = %q, want skipped", got)
	}

	s = NewService(config.NotifyConfig{WebhookURL: okSrv.URL, Retries: 1, TimeoutMs: 2000})
	if got := s.send("quote", "subj", "body"); got != "ok" {
		t.Errorf("delivered send = %q, want ok", got)
	}

	s = NewService(config.NotifyConfig{WebhookURL: failSrv.URL, Retries: 1, TimeoutMs: 2000})
	if got := s.send("quote", "subj", "body"); got != "failed" {
		t.Errorf("erroring send = %q, want failed", got)
	}
}

func TestFormatQuoteOmitsEmptyFields(t *testing.T) {
	got := formatQuote(QuotePayload{CostItem: "Kit", Account: "6001", Department: "Sports"})
	if strings.Contains(got, "Tracking") || strings.Contains(got, "Quote:") {
		t.Errorf("unexpected optional fields in %q", got)
	}
}
