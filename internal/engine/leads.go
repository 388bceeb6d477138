package engine

import (
	"context"
	"fmt"

	"github.com/voxgate/voxgate/internal/domain"
)

// outreachInstruction is injected as the first user turn of an
// agent-initiated conversation so the model produces the opening message.
const outreachInstruction = "Begin the conversation with a short, friendly opening message." +
	" Introduce yourself and ask how you can help."

// StartLeadOutreach initializes conversation state for each lead and
// sends the opening turn through the normal completion and delivery
// path. It returns the first error encountered; leads already contacted
// before the failure stay contacted.
func (e *Engine) StartLeadOutreach(ctx context.Context, leads []domain.Lead) error {
	for _, lead := range leads {
		if err := e.startLead(ctx, lead); err != nil {
			return fmt.Errorf("lead %s: %w", lead.PhoneNumber, err)
		}
	}
	return nil
}

func (e *Engine) startLead(ctx context.Context, lead domain.Lead) error {
	sender := domain.NormalizePhone(lead.PhoneNumber)
	if sender == "" {
		return fmt.Errorf("invalid phone number %q", lead.PhoneNumber)
	}

	if !e.store.TrySetProcessing(sender) {
		e.log.Warn().Str("sender", sender).Msg("outreach skipped, turn already in flight")
		return nil
	}
	defer e.store.ClearProcessing(sender)

	conv := e.store.GetOrCreate(sender)
	if lead.Name != "" {
		e.store.SetName(sender, lead.Name)
	}
	if len(conv.Messages) == 0 && e.cfg.SystemPrompt != "" {
		e.store.AppendTurn(sender, domain.RoleSystem, e.cfg.SystemPrompt)
	}

	instruction := outreachInstruction
	if lead.Name != "" {
		instruction = fmt.Sprintf("%s The customer's name is %s.", outreachInstruction, lead.Name)
	}
	e.store.AppendTurn(sender, domain.RoleUser, instruction)

	opening, err := e.complete(ctx, sender, instruction)
	if err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	e.store.AppendTurn(sender, domain.RoleAssistant, opening)

	if err := e.notifier.SendReply(ctx, domain.OutboundReply{
		To:   sender,
		From: e.cfg.FromNumber,
		Body: opening,
	}); err != nil {
		return fmt.Errorf("delivery: %w", err)
	}

	e.store.SetPhase(sender, domain.PhaseAwaitingReply)
	e.log.Info().Str("sender", sender).Str("name", lead.Name).Msg("outreach sent")
	e.publish(sender)
	return nil
}
