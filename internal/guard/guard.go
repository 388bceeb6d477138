// Package guard gates inbound events with message-id deduplication and
// per-sender rate limiting before any conversation state is touched.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/logging"
)

// Decision is the outcome of admitting an inbound event.
type Decision int

const (
	// Accept means the event is new and may be processed.
	Accept Decision = iota
	// Duplicate means the message id was already seen inside the dedupe
	// window; acknowledge upstream but do not process.
	Duplicate
	// RateLimited means the sender is sending faster than the minimum
	// inter-message interval; acknowledge upstream but do not process.
	RateLimited
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Duplicate:
		return "duplicate"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Guard tracks recently seen message ids and per-sender accept times.
// Both maps are in-memory and best-effort; entries do not survive restarts.
type Guard struct {
	mu           sync.Mutex
	seen         map[string]time.Time // message id → first seen
	lastAccepted map[string]time.Time // sender id → last accepted event

	window      time.Duration
	minInterval time.Duration
	log         *logging.Logger
}

// New creates a Guard with the given dedupe window and minimum
// inter-message interval.
func New(window, minInterval time.Duration, log *logging.Logger) *Guard {
	return &Guard{
		seen:         make(map[string]time.Time),
		lastAccepted: make(map[string]time.Time),
		window:       window,
		minInterval:  minInterval,
		log:          log.Sub("guard"),
	}
}

// Admit decides whether an inbound event may be processed. On Accept it
// records the message id and the sender's accept time; Duplicate and
// RateLimited leave the maps untouched except for the already-present
// dedupe entry.
func (g *Guard) Admit(senderID, messageID string) Decision {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if messageID != "" {
		if first, ok := g.seen[messageID]; ok && now.Sub(first) < g.window {
			g.log.Debug().Str("messageId", messageID).Msg("duplicate message dropped")
			return Duplicate
		}
	}

	if last, ok := g.lastAccepted[senderID]; ok && now.Sub(last) < g.minInterval {
		g.log.Debug().Str("sender", senderID).Msg("sender rate limited")
		return RateLimited
	}

	if messageID != "" {
		g.seen[messageID] = now
	}
	g.lastAccepted[senderID] = now
	return Accept
}

// Sweep removes dedupe entries older than the window and stale rate-limit
// entries. Returns the number of dedupe entries removed.
func (g *Guard) Sweep() int {
	cutoff := time.Now().Add(-g.window)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, first := range g.seen {
		if first.Before(cutoff) {
			delete(g.seen, id)
			removed++
		}
	}
	for sender, last := range g.lastAccepted {
		if last.Before(cutoff) {
			delete(g.lastAccepted, sender)
		}
	}
	return removed
}

// Run sweeps expired entries periodically until the context is cancelled.
// It never blocks request handling; Admit holds the lock only briefly.
func (g *Guard) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				g.log.Debug().Int("removed", n).Msg("swept expired dedupe entries")
			}
		}
	}
}

// Pending returns the number of live dedupe entries. Used by tests and the
// health endpoint.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
