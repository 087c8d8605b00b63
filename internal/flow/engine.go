// Package flow drives the purchase-order intake conversation. Each inbound
// message is one transition: given the sender's session state and the
// message, the engine queries the ledger, updates the session and returns
// the reply text. Transitions for the same identity are serialized by the
// session store; a ledger failure leaves the session exactly as it was.
package flow

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/clubops/pobot/internal/bus"
	"github.com/clubops/pobot/internal/config"
	"github.com/clubops/pobot/internal/ledger"
	"github.com/clubops/pobot/internal/metrics"
	"github.com/clubops/pobot/internal/notify"
	"github.com/clubops/pobot/internal/roles"
	"github.com/clubops/pobot/internal/session"
)

type Engine struct {
	repo     ledger.Repository
	sessions *session.Store
	roles    *roles.Resolver
	notifier notify.Dispatcher
	cfg      config.IntakeConfig
}

func NewEngine(repo ledger.Repository, sessions *session.Store, resolver *roles.Resolver, notifier notify.Dispatcher, cfg config.IntakeConfig) *Engine {
	return &Engine{
		repo:     repo,
		sessions: sessions,
		roles:    resolver,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Handle runs one transition for the message's sender and returns the
// reply. The returned error is reserved for internal faults; user-facing
// problems (unrecognized input, ledger unavailable) come back as reply
// text with the session untouched.
func (e *Engine) Handle(ctx context.Context, msg bus.InboundMessage) (string, error) {
	var reply string
	e.sessions.WithLock(msg.SessionKey(), func(s *session.Session) {
		reply = e.transition(ctx, msg, s)
	})
	return reply, nil
}

func (e *Engine) transition(ctx context.Context, msg bus.InboundMessage, s *session.Session) string {
	text := strings.TrimSpace(msg.Text)

	switch s.State {
	case session.StateInitial:
		if e.isGreeting(text) {
			return e.startFlow(ctx, msg, s)
		}
	case session.StateAwaitingDepartment:
		return e.chooseDepartment(ctx, msg, s, text)
	case session.StateAwaitingCostItem:
		return e.chooseCostItem(ctx, msg, s, text)
	case session.StateAwaitingQuote:
		return e.receiveQuote(msg, s)
	case session.StateAwaitingFinanceQ1:
		return e.answerQ1(msg, s, text)
	case session.StateAwaitingFinanceQ2:
		return e.answerQ2(msg, s, text)
	}

	metrics.IncTransition(s.State.String(), metrics.OutcomeFallback)
	return renderFallback()
}

func (e *Engine) isGreeting(text string) bool {
	lowered := strings.ToLower(text)
	for _, trigger := range e.cfg.Triggers {
		if strings.HasPrefix(lowered, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}

// startFlow is the only place the role resolver runs: admins pick a
// department, everyone else starts straight at cost-item selection with
// their mapped (or default) department pre-filled.
func (e *Engine) startFlow(ctx context.Context, msg bus.InboundMessage, s *session.Session) string {
	name := firstName(msg.DisplayName)
	role := e.roles.Resolve(msg.Sender)

	if role.Kind == roles.KindAdmin {
		s.State = session.StateAwaitingDepartment
		metrics.IncTransition(session.StateInitial.String(), metrics.OutcomeAdvanced)
		return renderDepartmentPrompt(name, e.cfg.Departments)
	}

	items, err := e.repo.ListCostItems(ctx, role.Department)
	if err != nil {
		return e.ledgerFailure(session.StateInitial, err)
	}

	s.State = session.StateAwaitingCostItem
	s.Department = role.Department
	metrics.IncTransition(session.StateInitial.String(), metrics.OutcomeAdvanced)
	return renderGreetingCostItems(name, role.Department, items)
}

func (e *Engine) chooseDepartment(ctx context.Context, msg bus.InboundMessage, s *session.Session, text string) string {
	department := e.canonicalDepartment(text)
	if department == "" {
		metrics.IncTransition(s.State.String(), metrics.OutcomeReprompt)
		return renderDepartmentNotRecognized(e.cfg.Departments)
	}

	items, err := e.repo.ListCostItems(ctx, department)
	if err != nil {
		return e.ledgerFailure(s.State, err)
	}

	s.State = session.StateAwaitingCostItem
	s.Department = department
	metrics.IncTransition(session.StateAwaitingDepartment.String(), metrics.OutcomeAdvanced)
	return renderDepartmentCostItems(firstName(msg.DisplayName), department, items)
}

// canonicalDepartment matches user text against the configured department
// names, case-insensitive and exact. Substrings never match.
func (e *Engine) canonicalDepartment(text string) string {
	for _, d := range e.cfg.Departments {
		if strings.EqualFold(strings.TrimSpace(text), d) {
			return d
		}
	}
	return ""
}

func (e *Engine) chooseCostItem(ctx context.Context, msg bus.InboundMessage, s *session.Session, text string) string {
	rec, err := e.repo.ResolveCostItem(ctx, s.Department, text)
	if errors.Is(err, ledger.ErrNotFound) {
		metrics.IncTransition(s.State.String(), metrics.OutcomeReprompt)
		return renderCostItemNotRecognized(s.Department)
	}
	if err != nil {
		return e.ledgerFailure(s.State, err)
	}

	// All three queries must succeed before anything is written to the
	// session, so a partial failure is indistinguishable from no attempt.
	accountTotal, err := e.repo.AccountTotal(ctx, rec.Account, s.Department)
	if err != nil {
		return e.ledgerFailure(s.State, err)
	}
	actuals, err := e.repo.ActualsTotal(ctx, rec.Account, s.Department)
	if err != nil {
		return e.ledgerFailure(s.State, err)
	}

	s.State = session.StateAwaitingQuote
	s.CostItem = rec.Name
	s.Account = rec.Account
	s.Tracking = rec.Tracking
	s.FinanceRef = rec.FinanceRef
	metrics.IncTransition(session.StateAwaitingCostItem.String(), metrics.OutcomeAdvanced)
	return renderFigures(rec.Name, s.Department, rec.Account, rec.Budgeted, accountTotal, actuals)
}

func (e *Engine) receiveQuote(msg bus.InboundMessage, s *session.Session) string {
	if msg.Attachment == nil {
		metrics.IncTransition(s.State.String(), metrics.OutcomeReprompt)
		return renderQuoteReminder()
	}

	e.notifier.QuoteReceived(notify.QuotePayload{
		CostItem:       s.CostItem,
		Account:        s.Account,
		Department:     s.Department,
		Tracking:       s.Tracking,
		FinanceRef:     s.FinanceRef,
		AttachmentName: msg.Attachment.Name,
		AttachmentURI:  msg.Attachment.DownloadURI,
	})

	s.State = session.StateAwaitingFinanceQ1
	metrics.IncTransition(session.StateAwaitingQuote.String(), metrics.OutcomeAdvanced)
	return renderFinanceQ1(firstName(msg.DisplayName))
}

func (e *Engine) answerQ1(msg bus.InboundMessage, s *session.Session, text string) string {
	if text == "" {
		metrics.IncTransition(s.State.String(), metrics.OutcomeReprompt)
		return renderAnswerReminder(financeQ1)
	}

	s.Answers = append(s.Answers, text)
	s.State = session.StateAwaitingFinanceQ2
	metrics.IncTransition(session.StateAwaitingFinanceQ1.String(), metrics.OutcomeAdvanced)
	return renderFinanceQ2()
}

func (e *Engine) answerQ2(msg bus.InboundMessage, s *session.Session, text string) string {
	if text == "" {
		metrics.IncTransition(s.State.String(), metrics.OutcomeReprompt)
		return renderAnswerReminder(financeQ2)
	}

	answer1 := ""
	if len(s.Answers) > 0 {
		answer1 = s.Answers[0]
	}

	e.notifier.FlowCompleted(notify.CompletionPayload{
		Sender:  msg.Sender,
		Answer1: answer1,
		Answer2: text,
	})

	s.Reset()
	metrics.IncTransition(session.StateAwaitingFinanceQ2.String(), metrics.OutcomeAdvanced)
	return renderDone(firstName(msg.DisplayName))
}

func (e *Engine) ledgerFailure(state session.State, err error) string {
	log.Printf("[flow] ledger query failed in %s: %v", state, err)
	metrics.IncTransition(state.String(), metrics.OutcomeLedgerError)
	return renderLedgerUnavailable()
}
