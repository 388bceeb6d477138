// Package domain defines the core types shared across Voxgate services.
package domain

import "time"

// Role identifies the author of a conversation message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Phase is the lifecycle state of a conversation.
type Phase string

const (
	// PhaseNew means no assistant reply has been sent yet.
	PhaseNew Phase = "new"
	// PhaseAwaitingReply means the assistant has spoken and the next inbound
	// message is a regular turn.
	PhaseAwaitingReply Phase = "awaiting_reply"
	// PhaseTerminal means the conversation has ended; the next inbound
	// message starts over.
	PhaseTerminal Phase = "terminal"
)

// NextPhase is the single transition function for conversation phases.
// replied reports that an assistant reply was delivered this turn; ended
// reports that the turn concluded the conversation.
func NextPhase(p Phase, replied, ended bool) Phase {
	if ended {
		return PhaseTerminal
	}
	if replied {
		return PhaseAwaitingReply
	}
	return p
}

// Message is a single turn in a conversation history. Insertion order is
// chronological and replayed verbatim to the completion model.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation tracks per-sender state. The sender's phone number is the
// partition key for all conversation, dedupe, and rate-limit state.
type Conversation struct {
	SenderID  string    `json:"senderId"`
	Name      string    `json:"name,omitempty"`
	Phase     Phase     `json:"phase"`
	ThreadRef string    `json:"threadRef,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
