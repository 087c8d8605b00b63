// Package gateway wires the intake bot together: channels feed the
// message bus, the flow engine answers, and an HTTP server exposes the
// Google Chat webhook plus health and metrics endpoints.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubops/pobot/internal/bus"
	"github.com/clubops/pobot/internal/channel"
	"github.com/clubops/pobot/internal/config"
	"github.com/clubops/pobot/internal/cron"
	"github.com/clubops/pobot/internal/flow"
	"github.com/clubops/pobot/internal/ledger"
	"github.com/clubops/pobot/internal/notify"
	"github.com/clubops/pobot/internal/roles"
	"github.com/clubops/pobot/internal/session"
)

// Options allow tests to inject the ledger and notifier instead of
// reaching Google Sheets and real webhooks.
type Options struct {
	Repository ledger.Repository
	Notifier   notify.Dispatcher
	SignalChan chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	engine     *flow.Engine
	sessions   *session.Store
	channels   *channel.Manager
	cron       *cron.Service
	server     *http.Server
	signalChan chan os.Signal
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		signalChan: opts.SignalChan,
	}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)
	g.sessions = session.NewStore()

	repo := opts.Repository
	if repo == nil {
		var err error
		repo, err = ledger.NewSheetsLedger(context.Background(), cfg.Ledger)
		if err != nil {
			return nil, fmt.Errorf("create sheets ledger: %w", err)
		}
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewService(cfg.Notify)
	}

	g.engine = flow.NewEngine(repo, g.sessions, roles.NewResolver(cfg.Intake), notifier, cfg.Intake)

	chMgr, err := channel.NewManager(cfg.Channels, g.bus, g.engine.Handle)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	g.cron = cron.NewService()
	ttl := cfg.Session.TTLDuration()
	if err := g.cron.Every(cfg.Session.SweepInterval(), "session-sweep", func() {
		if evicted := g.sessions.Sweep(ttl); evicted > 0 {
			log.Printf("[gateway] evicted %d idle session(s)", evicted)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule session sweep: %w", err)
	}

	g.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler:           g.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

func (g *Gateway) buildMux() *http.ServeMux {
	mux := http.NewServeMux()

	if path, handler, ok := g.channels.WebhookHandler(); ok {
		mux.Handle(path, handler)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Handler exposes the HTTP mux (for tests)
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	g.cron.Start()

	go func() {
		log.Printf("[gateway] listening on %s", g.server.Addr)
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[gateway] http server error: %v", err)
		}
	}()

	go g.processLoop(ctx)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

// processLoop serves channels that reply asynchronously through the bus.
// Per-identity ordering is enforced by the session store, so each message
// gets its own goroutine.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.Sender, truncate(msg.Text, 80))
			go func(msg bus.InboundMessage) {
				reply, err := g.engine.Handle(ctx, msg)
				if err != nil {
					log.Printf("[gateway] handle message from %s: %v", msg.Sender, err)
					reply = "Sorry, something went wrong handling your message."
				}
				if reply != "" {
					g.bus.Outbound <- bus.OutboundMessage{
						Channel: msg.Channel,
						ChatID:  msg.ChatID,
						Content: reply,
					}
				}
			}(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	_ = g.channels.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[gateway] http shutdown warning: %v", err)
	}

	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
