package bus

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

// Attachment describes a file carried by an inbound message. The file itself
// is never downloaded by the intake flow; the descriptor is forwarded to
// procurement as-is.
type Attachment struct {
	Name        string
	ContentType string
	DownloadURI string
}

type InboundMessage struct {
	Channel     string
	Sender      string // email-like identity, matched case-insensitively
	DisplayName string
	ChatID      string
	Text        string
	Attachment  *Attachment
	Timestamp   time.Time
	Metadata    map[string]any
}

// SessionKey returns the identity the conversation state is keyed by.
func (m *InboundMessage) SessionKey() string {
	return strings.ToLower(strings.TrimSpace(m.Sender))
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

// MessageBus decouples channel adapters from the flow engine. Channels push
// onto Inbound; replies for asynchronous channels are routed from Outbound to
// the subscriber registered under the channel name.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu   sync.RWMutex
	subs map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
		subs:     make(map[string]func(OutboundMessage)),
	}
}

func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = fn
}

// DispatchOutbound drains Outbound until ctx is done, routing each message to
// its channel's subscriber. Messages for unknown channels are dropped with a
// log line.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn, ok := b.subs[msg.Channel]
			b.mu.RUnlock()
			if !ok {
				log.Printf("[bus] no subscriber for channel %s, dropping message", msg.Channel)
				continue
			}
			fn(msg)
		case <-ctx.Done():
			return
		}
	}
}
