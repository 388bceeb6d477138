package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxgate/voxgate/internal/domain"
	"github.com/voxgate/voxgate/internal/logging"
)

// defaultAPIBaseURL is the telephony provider's REST API base.
const defaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// DirectNotifier sends replies straight to the telephony provider's
// send-message endpoint.
type DirectNotifier struct {
	baseURL    string
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
	log        *logging.Logger
}

// DirectConfig configures direct-mode delivery.
type DirectConfig struct {
	BaseURL    string // empty means the provider default
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NewDirectNotifier creates a direct-mode notifier.
func NewDirectNotifier(cfg DirectConfig, log *logging.Logger) *DirectNotifier {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAPIBaseURL
	}
	return &DirectNotifier{
		baseURL:    base,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.Sub("notify.direct"),
	}
}

// SendReply posts the message to the provider. A non-success status
// yields a DeliveryError; there is no automatic retry because a retry
// after a partial success would double-send.
func (n *DirectNotifier) SendReply(ctx context.Context, reply domain.OutboundReply) error {
	from := reply.From
	if from == "" {
		from = n.fromNumber
	}

	form := url.Values{}
	form.Set("To", reply.To)
	form.Set("From", from)
	form.Set("Body", reply.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", n.baseURL, n.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.SetBasicAuth(n.accountSID, n.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &DeliveryError{Status: resp.StatusCode, Body: string(body)}
	}

	n.log.Info().Str("to", reply.To).Int("bodyLen", len(reply.Body)).Msg("message delivered")
	return nil
}
