// Package notify delivers assistant replies, either directly through the
// telephony provider or by relaying an event envelope to an external
// workflow engine. Exactly one mode is active per deployment; running
// both would double-deliver replies.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/voxgate/voxgate/internal/domain"
)

// Notifier delivers one assistant reply per turn. It is called from
// exactly one place (the engine) so a turn can never double-deliver.
type Notifier interface {
	SendReply(ctx context.Context, reply domain.OutboundReply) error
}

// EventRelay forwards arbitrary event envelopes best-effort. Failures
// are logged and swallowed, never surfaced to the caller.
type EventRelay interface {
	RelayEvent(ctx context.Context, envelope Envelope)
}

// Envelope is the JSON body posted to the relay endpoint.
type Envelope struct {
	Type      string    `json:"type"`
	To        string    `json:"to,omitempty"`
	From      string    `json:"from,omitempty"`
	Body      string    `json:"body,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryError reports a failed direct-mode send. The reply text is
// lost for this attempt; callers must not retry automatically since the
// provider may have partially accepted the message.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed with status %d: %s", e.Status, e.Body)
}
