// Package engine is the orchestration core. It binds the guard, the
// conversation store, the completion client, and the outbound notifier
// into a single turn-handling path so the same logic serves every entry
// point and replies can never be issued from two places.
package engine

import (
	"context"
	"strings"

	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/guard"
	"github.com/voxgate/voxgate/internal/llm"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/notify"
	"github.com/voxgate/voxgate/internal/store"
)

// Broadcaster pushes conversation updates to connected observers.
// Implementations must not block.
type Broadcaster interface {
	BroadcastConversation(c domain.Conversation)
}

// Config holds the engine's behavioral knobs.
type Config struct {
	// SystemPrompt seeds every new conversation.
	SystemPrompt string
	// FromNumber is the sender number stamped on direct-mode replies.
	FromNumber string
	// Threaded selects the hosted stateful-thread completion flavor.
	Threaded bool
	// EndKeywords terminate a conversation when a user message matches
	// one (case-insensitive). The next inbound message starts over.
	EndKeywords []string
}

// Engine serializes turns per sender and runs the inbound → completion →
// delivery pipeline.
type Engine struct {
	cfg       Config
	store     store.Store
	guard     *guard.Guard
	client    llm.Client
	threads   llm.ThreadClient // nil unless cfg.Threaded
	notifier  notify.Notifier
	broadcast Broadcaster // optional
	log       *logging.Logger
}

// New creates an engine. threads may be nil when cfg.Threaded is false;
// broadcast may be nil when no observers are wired.
func New(
	cfg Config,
	st store.Store,
	g *guard.Guard,
	client llm.Client,
	threads llm.ThreadClient,
	notifier notify.Notifier,
	broadcast Broadcaster,
	log *logging.Logger,
) *Engine {
	if len(cfg.EndKeywords) == 0 {
		cfg.EndKeywords = []string{"stop"}
	}
	return &Engine{
		cfg:       cfg,
		store:     st,
		guard:     g,
		client:    client,
		threads:   threads,
		notifier:  notifier,
		broadcast: broadcast,
		log:       log.Sub("engine"),
	}
}

// HandleInbound processes one SMS turn. The HTTP acknowledgment has
// already been sent by the time this runs; every failure here is
// contained to the turn and surfaced only via logs.
func (e *Engine) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	sender := domain.NormalizePhone(msg.From)
	if sender == "" {
		e.log.Warn().Str("from", msg.From).Msg("inbound message without usable sender")
		return
	}

	switch d := e.guard.Admit(sender, msg.MessageSid); d {
	case guard.Duplicate, guard.RateLimited:
		e.log.Debug().Str("sender", sender).Str("messageSid", msg.MessageSid).
			Str("decision", d.String()).Msg("inbound event skipped")
		return
	}

	// One in-flight turn per sender. The loser short-circuits: issuing a
	// second completion from the same stale history would desynchronize
	// the transcript and the user would get two uncoordinated replies.
	if !e.store.TrySetProcessing(sender) {
		e.log.Warn().Str("sender", sender).Msg("turn already in flight, dropping event")
		return
	}
	defer e.store.ClearProcessing(sender)

	conv := e.store.GetOrCreate(sender)
	if conv.Phase == domain.PhaseTerminal {
		e.store.Reset(sender)
		conv = e.store.GetOrCreate(sender)
	}
	if len(conv.Messages) == 0 && e.cfg.SystemPrompt != "" {
		e.store.AppendTurn(sender, domain.RoleSystem, e.cfg.SystemPrompt)
	}

	e.store.AppendTurn(sender, domain.RoleUser, msg.Body)

	reply, err := e.complete(ctx, sender, msg.Body)
	if err != nil {
		// Non-fatal: the ack already went out, so the turn is simply
		// abandoned.
		e.log.Error().Err(err).Str("sender", sender).Msg("completion failed, abandoning turn")
		return
	}

	e.store.AppendTurn(sender, domain.RoleAssistant, reply)

	if err := e.notifier.SendReply(ctx, domain.OutboundReply{
		To:   sender,
		From: e.cfg.FromNumber,
		Body: reply,
	}); err != nil {
		e.log.Error().Err(err).Str("sender", sender).Msg("reply delivery failed")
		return
	}

	ended := e.endsConversation(msg.Body)
	e.store.SetPhase(sender, domain.NextPhase(conv.Phase, true, ended))

	e.log.Info().Str("sender", sender).Bool("ended", ended).Msg("turn completed")
	e.publish(sender)
}

// complete dispatches to the configured completion flavor.
func (e *Engine) complete(ctx context.Context, sender, userMessage string) (string, error) {
	if e.cfg.Threaded && e.threads != nil {
		conv, _ := e.store.Get(sender)
		reply, ref, err := e.threads.CompleteThread(ctx, conv.ThreadRef, userMessage)
		if ref != "" && ref != conv.ThreadRef {
			e.store.SetThreadRef(sender, ref)
		}
		return reply, err
	}
	return e.client.Complete(ctx, e.store.History(sender))
}

func (e *Engine) endsConversation(userMessage string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(userMessage))
	for _, kw := range e.cfg.EndKeywords {
		if trimmed == strings.ToLower(kw) {
			return true
		}
	}
	return false
}

func (e *Engine) publish(sender string) {
	if e.broadcast == nil {
		return
	}
	if conv, ok := e.store.Get(sender); ok {
		e.broadcast.BroadcastConversation(conv)
	}
}

// Conversations exposes store snapshots for the dashboard endpoints.
func (e *Engine) Conversations() []domain.Conversation {
	return e.store.List()
}

// Conversation returns one sender's snapshot.
func (e *Engine) Conversation(senderID string) (domain.Conversation, bool) {
	return e.store.Get(domain.NormalizePhone(senderID))
}

// RecordCallOutcome folds a finished voice call's extraction result back
// into the caller's conversation state.
func (e *Engine) RecordCallOutcome(caller string, result *llm.ExtractResult) {
	sender := domain.NormalizePhone(caller)
	if sender == "" || result == nil {
		return
	}
	if result.CustomerName != "" {
		e.store.SetName(sender, result.CustomerName)
	}
	e.store.SetPhase(sender, domain.PhaseAwaitingReply)
	e.publish(sender)
}
