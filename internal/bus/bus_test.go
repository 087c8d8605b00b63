package bus

import (
	"context"
	"testing"
	"time"
)

func TestSessionKey_Normalized(t *testing.T) {
	tests := []struct {
		sender string
		want   string
	}{
		{"Facilities@bahrainrfc.com", "facilities@bahrainrfc.com"},
		{"  HR@club.org  ", "hr@club.org"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		m := InboundMessage{Sender: tt.sender}
		if got := m.SessionKey(); got != tt.want {
			t.Errorf("SessionKey(%q) = %q, want %q", tt.sender, got, tt.want)
		}
	}
}

func TestDispatchOutbound_RoutesBySubscriber(t *testing.T) {
	b := NewMessageBus(10)

	got := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) {
		got <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hello"}

	select {
	case msg := <-got:
		if msg.ChatID != "42" || msg.Content != "hello" {
			t.Errorf("delivered message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered to subscriber")
	}
}

func TestDispatchOutbound_UnknownChannelDropped(t *testing.T) {
	b := NewMessageBus(10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	// Must not block or panic.
	b.Outbound <- OutboundMessage{Channel: "nobody", Content: "lost"}
	time.Sleep(50 * time.Millisecond)
}
