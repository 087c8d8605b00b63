package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/clubops/pobot/internal/bus"
)

func TestChatREPL_SendsMessagesAndPrintsReplies(t *testing.T) {
	var seen []bus.InboundMessage
	stdin := strings.NewReader("hi\nexit\n")
	var stdout bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Responder: func(_ context.Context, msg bus.InboundMessage) (string, error) {
			seen = append(seen, msg)
			return "reply to " + msg.Text, nil
		},
		Stdin:  stdin,
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("responder calls = %d, want 1", len(seen))
	}
	if seen[0].Text != "hi" || seen[0].Channel != "cli" {
		t.Errorf("inbound = %+v", seen[0])
	}
	if !strings.Contains(stdout.String(), "reply to hi") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestChatREPL_AttachCommand(t *testing.T) {
	var seen []bus.InboundMessage
	stdin := strings.NewReader("/attach quote.pdf\nquit\n")
	var stdout bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Responder: func(_ context.Context, msg bus.InboundMessage) (string, error) {
			seen = append(seen, msg)
			return "got it", nil
		},
		Stdin:  stdin,
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions: %v", err)
	}

	if len(seen) != 1 {
		t.Fatalf("responder calls = %d, want 1", len(seen))
	}
	msg := seen[0]
	if msg.Attachment == nil || msg.Attachment.Name != "quote.pdf" {
		t.Errorf("attachment = %+v", msg.Attachment)
	}
	if msg.Text != "" {
		t.Errorf("text = %q, want empty for attachment message", msg.Text)
	}
}

func TestChatREPL_SkipsEmptyInput(t *testing.T) {
	calls := 0
	stdin := strings.NewReader("\n\n   \nexit\n")
	var stdout bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Responder: func(_ context.Context, _ bus.InboundMessage) (string, error) {
			calls++
			return "", nil
		},
		Stdin:  stdin,
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions: %v", err)
	}
	if calls != 0 {
		t.Errorf("responder calls = %d, want 0", calls)
	}
}

func TestChatREPL_ResponderErrorGoesToStderr(t *testing.T) {
	stdin := strings.NewReader("hi\nexit\n")
	var stdout, stderr bytes.Buffer

	err := runChatWithOptions(ChatOptions{
		Responder: func(_ context.Context, _ bus.InboundMessage) (string, error) {
			return "", fmt.Errorf("ledger down")
		},
		Stdin:  stdin,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("runChatWithOptions: %v", err)
	}
	if !strings.Contains(stderr.String(), "ledger down") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestInit_CommandsRegistered(t *testing.T) {
	want := map[string]bool{"gateway": false, "chat": false, "onboard": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestValueOrUnset(t *testing.T) {
	if got := valueOrUnset(""); got != "(not set)" {
		t.Errorf("got %q", got)
	}
	if got := valueOrUnset("sheet-id"); got != "sheet-id" {
		t.Errorf("got %q", got)
	}
}
