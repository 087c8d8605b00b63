package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/clubops/pobot/internal/bus"
	"github.com/clubops/pobot/internal/config"
)

type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	chat     *GoogleChatChannel
}

// NewManager builds the enabled channels. The responder is handed to the
// Google Chat channel, which answers inside the webhook response; async
// channels reply through the outbound bus instead.
func NewManager(cfg config.ChannelsConfig, b *bus.MessageBus, respond Responder) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.GoogleChat.Enabled {
		ch := NewGoogleChatChannel(cfg.GoogleChat, b, respond)
		m.channels[ch.Name()] = ch
		m.chat = ch
	}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.channels[ch.Name()] = ch
		b.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
			if err := ch.Send(msg); err != nil {
				log.Printf("[channel-mgr] send to %s failed: %v", ch.Name(), err)
			}
		})
	}

	return m, nil
}

// WebhookHandler returns the Google Chat handler and mount path, or false
// when the channel is disabled.
func (m *Manager) WebhookHandler() (string, http.Handler, bool) {
	if m.chat == nil {
		return "", nil, false
	}
	return m.chat.Path(), m.chat.Handler(), true
}

func (m *Manager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channel-mgr] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *Manager) StopAll() error {
	for name, ch := range m.channels {
		log.Printf("[channel-mgr] stopping %s", name)
		if err := ch.Stop(); err != nil {
			log.Printf("[channel-mgr] error stopping %s: %v", name, err)
		}
	}
	return nil
}

func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}
