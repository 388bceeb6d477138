package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/logging"
)

// relayTimeout is the hard abort for relay posts.
const relayTimeout = 5 * time.Second

// RelayNotifier forwards reply events to a single configured external
// workflow endpoint. Delivery is best-effort: timeouts and non-success
// statuses are logged and swallowed so they can never abort the turn
// that produced them. The endpoint comes from config; there is no
// fallback URL.
type RelayNotifier struct {
	endpoint string
	client   *http.Client
	log      *logging.Logger
}

// NewRelayNotifier creates a relay-mode notifier for the given endpoint.
func NewRelayNotifier(endpoint string, log *logging.Logger) *RelayNotifier {
	return &RelayNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: relayTimeout},
		log:      log.Sub("notify.relay"),
	}
}

// SendReply relays the reply envelope. It always returns nil.
func (n *RelayNotifier) SendReply(ctx context.Context, reply domain.OutboundReply) error {
	n.RelayEvent(ctx, Envelope{
		Type:      "message.reply",
		To:        reply.To,
		From:      reply.From,
		Body:      reply.Body,
		Timestamp: time.Now(),
	})
	return nil
}

// RelayEvent posts an envelope to the relay endpoint, fire-and-forget.
func (n *RelayNotifier) RelayEvent(ctx context.Context, envelope Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		n.log.Error().Err(err).Msg("failed to marshal relay envelope")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(data))
	if err != nil {
		n.log.Error().Err(err).Msg("failed to build relay request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Str("type", envelope.Type).Msg("relay post failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.log.Warn().Int("status", resp.StatusCode).Str("type", envelope.Type).Msg("relay endpoint rejected event")
		return
	}

	n.log.Debug().Str("type", envelope.Type).Msg("event relayed")
}
