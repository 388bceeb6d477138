// Package store owns per-sender conversation state. It is the single
// source of truth consulted and mutated by the orchestration engine; other
// components receive snapshots for the duration of one call and never
// retain them.
package store

import "github.com/voxgate/voxgate/internal/domain"

// Store is the conversation store contract. Implementations must make
// TrySetProcessing atomic with respect to concurrent calls for the same
// sender: two near-simultaneous events must never both observe the flag
// clear.
type Store interface {
	// GetOrCreate returns a snapshot of the sender's conversation,
	// creating an empty one in PhaseNew if none exists.
	GetOrCreate(senderID string) domain.Conversation

	// Get returns a snapshot and whether the conversation exists.
	Get(senderID string) (domain.Conversation, bool)

	// AppendTurn appends one message to the sender's history.
	AppendTurn(senderID, role, content string)

	// TrySetProcessing atomically sets the in-flight flag for the sender.
	// It returns false if a turn is already being processed.
	TrySetProcessing(senderID string) bool

	// ClearProcessing releases the in-flight flag.
	ClearProcessing(senderID string)

	// SetPhase records the sender's conversation phase.
	SetPhase(senderID string, phase domain.Phase)

	// SetName records the sender's captured name.
	SetName(senderID, name string)

	// SetThreadRef records the opaque hosted-thread handle.
	SetThreadRef(senderID, ref string)

	// Reset returns the conversation to PhaseNew with empty history,
	// retaining the captured name.
	Reset(senderID string)

	// History returns the sender's messages in insertion order.
	History(senderID string) []domain.Message

	// List returns snapshots of all conversations.
	List() []domain.Conversation
}

// processingSet is the shared atomic test-and-set used by both backings.
// The in-flight flag is runtime state and is never persisted.
type processingSet struct {
	flags map[string]bool
}

func newProcessingSet() *processingSet {
	return &processingSet{flags: make(map[string]bool)}
}

// trySet must be called with the owning store's lock held.
func (p *processingSet) trySet(senderID string) bool {
	if p.flags[senderID] {
		return false
	}
	p.flags[senderID] = true
	return true
}

// clear must be called with the owning store's lock held.
func (p *processingSet) clear(senderID string) {
	delete(p.flags, senderID)
}
