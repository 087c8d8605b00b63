package channel

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/clubops/pobot/internal/bus"
	"github.com/clubops/pobot/internal/config"
)

const googleChatChannelName = "googlechat"

// Responder computes the reply for one inbound message. Google Chat
// expects the answer in the webhook response body, so this channel calls
// the flow directly instead of going through the outbound bus.
type Responder func(ctx context.Context, msg bus.InboundMessage) (string, error)

// chatEvent is the slice of the Google Chat event payload we consume.
type chatEvent struct {
	Type  string `json:"type"`
	Token string `json:"token"`
	Space struct {
		Name string `json:"name"`
	} `json:"space"`
	Message struct {
		Text   string `json:"text"`
		Sender struct {
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
		} `json:"sender"`
		Attachment []struct {
			ContentName string `json:"contentName"`
			ContentType string `json:"contentType"`
			DownloadURI string `json:"downloadUri"`
		} `json:"attachment"`
	} `json:"message"`
}

type GoogleChatChannel struct {
	BaseChannel
	cfg     config.GoogleChatConfig
	respond Responder
}

func NewGoogleChatChannel(cfg config.GoogleChatConfig, b *bus.MessageBus, respond Responder) *GoogleChatChannel {
	return &GoogleChatChannel{
		BaseChannel: NewBaseChannel(googleChatChannelName, b, cfg.AllowFrom),
		cfg:         cfg,
		respond:     respond,
	}
}

// Start is a no-op: the gateway mounts Handler() on its own HTTP server.
func (g *GoogleChatChannel) Start(ctx context.Context) error {
	log.Printf("[googlechat] webhook ready at %s", g.Path())
	return nil
}

func (g *GoogleChatChannel) Stop() error {
	return nil
}

// Send is unused for Google Chat: replies travel back in the webhook
// response. Outbound messages routed here are dropped.
func (g *GoogleChatChannel) Send(msg bus.OutboundMessage) error {
	log.Printf("[googlechat] dropping outbound message to %s (replies are synchronous)", msg.ChatID)
	return nil
}

func (g *GoogleChatChannel) Path() string {
	if g.cfg.Path != "" {
		return g.cfg.Path
	}
	return config.DefaultWebhookPath
}

func (g *GoogleChatChannel) Handler() http.Handler {
	return http.HandlerFunc(g.handleEvent)
}

func (g *GoogleChatChannel) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev chatEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if g.cfg.VerificationToken != "" && ev.Token != g.cfg.VerificationToken {
		log.Printf("[googlechat] rejected event with bad verification token")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	sender := strings.ToLower(strings.TrimSpace(ev.Message.Sender.Email))
	if sender == "" {
		writeChatReply(w, "")
		return
	}
	if !g.IsAllowed(sender) {
		log.Printf("[googlechat] rejected message from %s", sender)
		writeChatReply(w, "")
		return
	}

	msg := bus.InboundMessage{
		Channel:     googleChatChannelName,
		Sender:      sender,
		DisplayName: ev.Message.Sender.DisplayName,
		ChatID:      ev.Space.Name,
		Text:        ev.Message.Text,
		Timestamp:   time.Now(),
	}
	if len(ev.Message.Attachment) > 0 {
		att := ev.Message.Attachment[0]
		msg.Attachment = &bus.Attachment{
			Name:        att.ContentName,
			ContentType: att.ContentType,
			DownloadURI: att.DownloadURI,
		}
	}

	reply, err := g.respond(r.Context(), msg)
	if err != nil {
		log.Printf("[googlechat] handle message from %s: %v", sender, err)
		writeChatReply(w, "Something went wrong on our side. Please try again.")
		return
	}
	writeChatReply(w, reply)
}

func writeChatReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(map[string]string{"text": text}); err != nil {
		log.Printf("[googlechat] write reply: %v", err)
	}
}
